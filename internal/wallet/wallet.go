package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"
	"bridge/agent/internal/stores"
	"bridge/agent/internal/utils/eth"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the part of ethclient.Client the wallet uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// Forward passes a raw JSON-RPC call through to the node.
	Forward(ctx context.Context, result any, method string, params ...any) error
	Close()
}

type ethBackend struct {
	*ethclient.Client
}

func (b ethBackend) Forward(ctx context.Context, result any, method string, params ...any) error {
	return b.Client.Client().CallContext(ctx, result, method, params...)
}

func DialBackend(ctx context.Context, url string) (Backend, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return ethBackend{c}, nil
}

// Consent asks the user to approve a wallet request. A non-nil error declines it.
type Consent func(ctx context.Context, method string, summary string) error

type chainConn struct {
	backend Backend
	params  models.AddChainParams
}

// KeystoreWallet is a Provider that signs with a local keystore and reaches
// each chain through its own RPC endpoint.
type KeystoreWallet struct {
	mu         sync.Mutex
	ks         stores.KeyStore
	consent    Consent
	chains     map[int64]*chainConn
	active     int64
	authorized bool
	selected   string

	subs    map[int]func(provider.Event)
	nextSub int

	Dial func(ctx context.Context, url string) (Backend, error)
	log  *zap.SugaredLogger
}

func NewKeystoreWallet(ks stores.KeyStore, consent Consent, logger *zap.SugaredLogger) *KeystoreWallet {
	return &KeystoreWallet{
		ks:      ks,
		consent: consent,
		chains:  make(map[int64]*chainConn),
		subs:    make(map[int]func(provider.Event)),
		Dial:    DialBackend,
		log:     logger,
	}
}

// Authorize pre-grants account access, as a wallet remembering a trusted site would.
func (w *KeystoreWallet) Authorize() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authorized = true
}

// Register dials rpcURL and makes the chain known to the wallet. The first
// registered chain becomes active.
func (w *KeystoreWallet) Register(ctx context.Context, rpcURL string, name string) (int64, error) {
	backend, err := w.Dial(ctx, rpcURL)
	if err != nil {
		return 0, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}
	id, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return 0, fmt.Errorf("reading chain id from %s: %w", rpcURL, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.chains[id.Int64()]; ok {
		old.backend.Close()
	}
	w.chains[id.Int64()] = &chainConn{
		backend: backend,
		params: models.AddChainParams{
			ChainID:   hexutil.EncodeBig(id),
			ChainName: name,
			RpcURLs:   []string{rpcURL},
		},
	}
	if w.active == 0 {
		w.active = id.Int64()
	}
	w.log.Infow("registered chain", "chainId", id, "name", name)
	return id.Int64(), nil
}

// SelectAccount changes the account exposed first and notifies subscribers.
func (w *KeystoreWallet) SelectAccount(ctx context.Context, address string) error {
	if !w.ks.HasKey(ctx, address) {
		return fmt.Errorf("no key for %s", address)
	}
	w.mu.Lock()
	w.selected = common.HexToAddress(address).Hex()
	authorized := w.authorized
	w.mu.Unlock()

	if authorized {
		w.emit(provider.Event{Type: provider.EventAccountsChanged, Accounts: w.accounts(ctx)})
	}
	return nil
}

// Revoke withdraws account access; subscribers see an empty account list.
func (w *KeystoreWallet) Revoke() {
	w.mu.Lock()
	w.authorized = false
	w.mu.Unlock()
	w.emit(provider.Event{Type: provider.EventAccountsChanged, Accounts: []string{}})
}

func (w *KeystoreWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.chains {
		c.backend.Close()
	}
	w.chains = make(map[int64]*chainConn)
	w.active = 0
}

func (w *KeystoreWallet) Subscribe(handler func(provider.Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = handler
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

func (w *KeystoreWallet) emit(ev provider.Event) {
	w.mu.Lock()
	handlers := make([]func(provider.Event), 0, len(w.subs))
	for _, h := range w.subs {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (w *KeystoreWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts":
		return w.requestAccounts(ctx)
	case "eth_accounts":
		w.mu.Lock()
		authorized := w.authorized
		w.mu.Unlock()
		if !authorized {
			return json.Marshal([]string{})
		}
		return json.Marshal(w.accounts(ctx))
	case "eth_chainId":
		_, id, err := w.activeChain()
		if err != nil {
			return nil, err
		}
		return json.Marshal(eth.ChainIDHex(id))
	case "wallet_switchEthereumChain":
		return w.switchChain(ctx, params)
	case "wallet_addEthereumChain":
		return w.addChain(ctx, params)
	case "eth_sendTransaction":
		return w.sendTransaction(ctx, params)
	default:
		conn, _, err := w.activeChain()
		if err != nil {
			return nil, err
		}
		var out json.RawMessage
		if err := conn.backend.Forward(ctx, &out, method, params...); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func (w *KeystoreWallet) accounts(ctx context.Context) []string {
	all := w.ks.Accounts(ctx)
	w.mu.Lock()
	selected := w.selected
	w.mu.Unlock()
	if selected == "" {
		return all
	}
	out := []string{selected}
	for _, a := range all {
		if !strings.EqualFold(a, selected) {
			out = append(out, a)
		}
	}
	return out
}

func (w *KeystoreWallet) requestAccounts(ctx context.Context) (json.RawMessage, error) {
	accts := w.accounts(ctx)
	if len(accts) == 0 {
		return nil, provider.NewError(provider.CodeUnauthorized, "no accounts in keystore")
	}

	w.mu.Lock()
	authorized := w.authorized
	w.mu.Unlock()

	if !authorized {
		if err := w.ask(ctx, "eth_requestAccounts", fmt.Sprintf("share account %s", accts[0])); err != nil {
			return nil, err
		}
		w.mu.Lock()
		w.authorized = true
		w.mu.Unlock()
	}
	return json.Marshal(accts)
}

func (w *KeystoreWallet) ask(ctx context.Context, method, summary string) error {
	if w.consent == nil {
		return nil
	}
	if err := w.consent(ctx, method, summary); err != nil {
		w.log.Infow("request declined", "method", method, "reason", err)
		return provider.NewError(provider.CodeUserRejected, "User rejected the request.")
	}
	return nil
}

func (w *KeystoreWallet) activeChain() (*chainConn, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	conn, ok := w.chains[w.active]
	if !ok {
		return nil, 0, provider.NewError(provider.CodeChainDisconnected, "wallet is not connected to any chain")
	}
	return conn, w.active, nil
}

type switchParams struct {
	ChainID string `json:"chainId"`
}

func (w *KeystoreWallet) switchChain(ctx context.Context, params []any) (json.RawMessage, error) {
	var p switchParams
	if err := provider.DecodeParam(params, 0, &p); err != nil {
		return nil, err
	}
	id, err := eth.ParseChainID(p.ChainID)
	if err != nil {
		return nil, provider.NewError(provider.CodeInvalidParams, err.Error())
	}

	w.mu.Lock()
	_, known := w.chains[id]
	current := w.active
	w.mu.Unlock()

	if !known {
		return nil, provider.NewError(provider.CodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %q.", p.ChainID))
	}
	if current == id {
		return json.RawMessage("null"), nil
	}
	if err := w.ask(ctx, "wallet_switchEthereumChain", fmt.Sprintf("switch to chain %d", id)); err != nil {
		return nil, err
	}
	w.activate(id)
	return json.RawMessage("null"), nil
}

func (w *KeystoreWallet) activate(id int64) {
	w.mu.Lock()
	w.active = id
	w.mu.Unlock()
	w.log.Infow("switched chain", "chainId", id)
	w.emit(provider.Event{Type: provider.EventChainChanged, ChainID: eth.ChainIDHex(id)})
}

func (w *KeystoreWallet) addChain(ctx context.Context, params []any) (json.RawMessage, error) {
	var p models.AddChainParams
	if err := provider.DecodeParam(params, 0, &p); err != nil {
		return nil, err
	}
	id, err := eth.ParseChainID(p.ChainID)
	if err != nil {
		return nil, provider.NewError(provider.CodeInvalidParams, err.Error())
	}
	if len(p.RpcURLs) == 0 {
		return nil, provider.NewError(provider.CodeInvalidParams, "rpcUrls is empty")
	}
	if err := w.ask(ctx, "wallet_addEthereumChain", fmt.Sprintf("add network %s (%d) via %s", p.ChainName, id, p.RpcURLs[0])); err != nil {
		return nil, err
	}

	backend, err := w.Dial(ctx, p.RpcURLs[0])
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", p.RpcURLs[0], err)
	}
	remote, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("reading chain id from %s: %w", p.RpcURLs[0], err)
	}
	if remote.Int64() != id {
		backend.Close()
		return nil, provider.NewError(provider.CodeInvalidParams, fmt.Sprintf("rpc endpoint reports chain %s, expected %d", remote, id))
	}

	w.mu.Lock()
	if old, ok := w.chains[id]; ok {
		old.backend.Close()
	}
	w.chains[id] = &chainConn{backend: backend, params: p}
	w.mu.Unlock()

	w.log.Infow("added chain", "chainId", id, "name", p.ChainName)
	w.activate(id)
	return json.RawMessage("null"), nil
}

func (w *KeystoreWallet) sendTransaction(ctx context.Context, params []any) (json.RawMessage, error) {
	var req provider.TxRequest
	if err := provider.DecodeParam(params, 0, &req); err != nil {
		return nil, err
	}
	if !w.ks.HasKey(ctx, req.From) {
		return nil, provider.NewError(provider.CodeUnauthorized, fmt.Sprintf("no key for %s", req.From))
	}
	if !common.IsHexAddress(req.To) {
		return nil, provider.NewError(provider.CodeInvalidParams, "contract creation is not supported")
	}

	conn, chainID, err := w.activeChain()
	if err != nil {
		return nil, err
	}

	if err := w.ask(ctx, "eth_sendTransaction", describeTx(req, chainID)); err != nil {
		return nil, err
	}

	tx, err := w.buildTx(ctx, conn.backend, req)
	if err != nil {
		return nil, err
	}

	signed, err := w.ks.SignTx(ctx, req.From, tx, big.NewInt(chainID))
	if err != nil {
		return nil, fmt.Errorf("signing tx: %w", err)
	}
	if err := conn.backend.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	w.log.Infow("sent transaction", "hash", signed.Hash().Hex(), "chainId", chainID, "to", req.To)
	return json.Marshal(signed.Hash().Hex())
}

func (w *KeystoreWallet) buildTx(ctx context.Context, backend Backend, req provider.TxRequest) (*types.Transaction, error) {
	from := common.HexToAddress(req.From)
	to := common.HexToAddress(req.To)

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}

	var gasPrice *big.Int
	if req.GasPrice != nil {
		gasPrice = req.GasPrice.ToInt()
	} else if gasPrice, err = backend.SuggestGasPrice(ctx); err != nil {
		return nil, err
	}

	var gasLimit uint64
	if req.Gas != nil {
		gasLimit = uint64(*req.Gas)
	} else if gasLimit, err = backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Data:  req.Data,
		Value: value,
	}); err != nil {
		return nil, err
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	}), nil
}

func describeTx(req provider.TxRequest, chainID int64) string {
	selector := "transfer"
	if len(req.Data) >= 4 {
		selector = hexutil.Encode(req.Data[:4])
	}
	return fmt.Sprintf("send %s to %s on chain %d", selector, req.To, chainID)
}
