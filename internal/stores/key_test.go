package stores

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const stranger = "0x000000000000000000000000000000000000dEaD"

func openKeyStore(t *testing.T) *LocalKeyStore {
	t.Helper()
	ks, err := NewLocalKeyStore("testpass", filepath.Join(t.TempDir(), "keystore"))
	if err != nil {
		t.Fatalf("NewLocalKeyStore error: %v", err)
	}
	return ks
}

func TestImport_SignsAsImportedKey(t *testing.T) {
	ks := openKeyStore(t)
	ctx := context.Background()

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	want := crypto.PubkeyToAddress(priv.PublicKey)

	addr, err := ks.Import(priv)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if addr != want.Hex() {
		t.Fatalf("Import = %s, want %s", addr, want.Hex())
	}

	chainID := big.NewInt(11155111)
	tx := types.NewTransaction(3, common.HexToAddress("0x1111111111111111111111111111111111111111"), big.NewInt(0), 90000, big.NewInt(1_000_000_000), []byte{0x09, 0x5e, 0xa7, 0xb3})
	signed, err := ks.SignTx(ctx, addr, tx, chainID)
	if err != nil {
		t.Fatalf("SignTx error: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("types.Sender error: %v", err)
	}
	if sender != want {
		t.Fatalf("sender = %s, want %s", sender.Hex(), want.Hex())
	}
}

func TestUnknownAccount(t *testing.T) {
	ks := openKeyStore(t)
	ctx := context.Background()

	if ks.HasKey(ctx, stranger) {
		t.Fatal("HasKey returned true for unknown address")
	}
	if ks.HasKey(ctx, "not-an-address") {
		t.Fatal("HasKey returned true for malformed address")
	}

	tx := types.NewTransaction(0, common.HexToAddress(stranger), big.NewInt(0), 21000, big.NewInt(1), nil)
	if _, err := ks.SignTx(ctx, stranger, tx, big.NewInt(1)); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("SignTx error = %v, want ErrUnknownAccount", err)
	}
}

func TestAccounts_CaseInsensitiveLookup(t *testing.T) {
	ks := openKeyStore(t)
	ctx := context.Background()

	if got := ks.Accounts(ctx); len(got) != 0 {
		t.Fatalf("Accounts = %v, want empty", got)
	}

	a1, err := ks.Create()
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	a2, err := ks.Create()
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got := map[string]bool{}
	for _, a := range ks.Accounts(ctx) {
		got[a] = true
	}
	if len(got) != 2 || !got[a1] || !got[a2] {
		t.Fatalf("Accounts = %v, want %s and %s", got, a1, a2)
	}
	if !ks.HasKey(ctx, strings.ToLower(a1)) {
		t.Fatalf("HasKey(%s) = false", a1)
	}
}
