package stores

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var ErrUnknownAccount = errors.New("no key for account")

// KeyStore is the signing half of the wallet. Addresses are hex strings in any case.
type KeyStore interface {
	Accounts(ctx context.Context) []string
	HasKey(ctx context.Context, address string) bool
	SignTx(ctx context.Context, address string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// LocalKeyStore keeps scrypt-encrypted keys on disk, all sealed with one passphrase.
type LocalKeyStore struct {
	ks         *keystore.KeyStore
	passphrase string
}

func NewLocalKeyStore(passphrase string, dir string) (*LocalKeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("keystore dir: %w", err)
	}
	return &LocalKeyStore{
		ks:         keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		passphrase: passphrase,
	}, nil
}

// Accounts lists key addresses in keystore order (sorted by file URL).
func (l *LocalKeyStore) Accounts(ctx context.Context) []string {
	accts := l.ks.Accounts()
	out := make([]string, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Address.Hex())
	}
	return out
}

// Create generates a fresh key sealed with the store passphrase.
func (l *LocalKeyStore) Create() (string, error) {
	acct, err := l.ks.NewAccount(l.passphrase)
	if err != nil {
		return "", err
	}
	return acct.Address.Hex(), nil
}

// Import seals an existing private key with the store passphrase.
func (l *LocalKeyStore) Import(key *ecdsa.PrivateKey) (string, error) {
	acct, err := l.ks.ImportECDSA(key, l.passphrase)
	if err != nil {
		return "", err
	}
	return acct.Address.Hex(), nil
}

func (l *LocalKeyStore) HasKey(ctx context.Context, address string) bool {
	return common.IsHexAddress(address) && l.ks.HasAddress(common.HexToAddress(address))
}

func (l *LocalKeyStore) SignTx(ctx context.Context, address string, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	acct, err := l.find(address)
	if err != nil {
		return nil, err
	}
	return l.ks.SignTxWithPassphrase(acct, l.passphrase, tx, chainID)
}

func (l *LocalKeyStore) find(address string) (accounts.Account, error) {
	if !l.HasKey(context.Background(), address) {
		return accounts.Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	return l.ks.Find(accounts.Account{Address: common.HexToAddress(address)})
}
