package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"bridge/agent/internal/mocks"
	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	chainID   int64
	nonce     uint64
	gasPrice  *big.Int
	gas       uint64
	sent      []*types.Transaction
	forwarded []string
	closed    bool
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}
func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}
func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}
func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) Forward(ctx context.Context, result any, method string, params ...any) error {
	f.forwarded = append(f.forwarded, method)
	*(result.(*json.RawMessage)) = json.RawMessage(`"0x2a"`)
	return nil
}
func (f *fakeBackend) Close() { f.closed = true }

const owner = "0x960B650301E941C095aEf35F57aE1b2d73FC4dF1"

func newTestWallet(t *testing.T, consent Consent, backends map[string]*fakeBackend) *KeystoreWallet {
	t.Helper()
	w := NewKeystoreWallet(&mocks.MockKeyStore{Addr: owner}, consent, zaptest.NewLogger(t).Sugar())
	w.Dial = func(ctx context.Context, url string) (Backend, error) {
		b, ok := backends[url]
		if !ok {
			return nil, errors.New("unreachable")
		}
		return b, nil
	}
	return w
}

func TestRequestAccounts_Consent(t *testing.T) {
	asked := 0
	w := newTestWallet(t, func(ctx context.Context, method, summary string) error {
		asked++
		return nil
	}, nil)
	ctx := context.Background()

	raw, err := w.Request(ctx, "eth_accounts")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	raw, err = w.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)
	assert.JSONEq(t, `["`+owner+`"]`, string(raw))

	_, err = w.Request(ctx, "eth_requestAccounts")
	require.NoError(t, err)
	assert.Equal(t, 1, asked, "consent is asked once")

	raw, err = w.Request(ctx, "eth_accounts")
	require.NoError(t, err)
	assert.JSONEq(t, `["`+owner+`"]`, string(raw))
}

func TestRequestAccounts_Declined(t *testing.T) {
	w := newTestWallet(t, func(ctx context.Context, method, summary string) error {
		return errors.New("no")
	}, nil)

	_, err := w.Request(context.Background(), "eth_requestAccounts")
	code, ok := provider.ErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, provider.CodeUserRejected, code)
}

func TestSwitchChain_Unknown(t *testing.T) {
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://eth": {chainID: 1}})
	_, err := w.Register(context.Background(), "http://eth", "Ethereum")
	require.NoError(t, err)

	_, err = w.Request(context.Background(), "wallet_switchEthereumChain", map[string]string{"chainId": "0xa4b1"})
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeUnrecognizedChain, code)
}

func TestAddChain_ActivatesAndEmits(t *testing.T) {
	arb := &fakeBackend{chainID: 42161}
	w := newTestWallet(t, nil, map[string]*fakeBackend{
		"http://eth": {chainID: 1},
		"http://arb": arb,
	})
	ctx := context.Background()
	_, err := w.Register(ctx, "http://eth", "Ethereum")
	require.NoError(t, err)

	var events []provider.Event
	unsub := w.Subscribe(func(ev provider.Event) { events = append(events, ev) })
	defer unsub()

	_, err = w.Request(ctx, "wallet_addEthereumChain", models.AddChainParams{
		ChainID:   "0xa4b1",
		ChainName: "Arbitrum One",
		RpcURLs:   []string{"http://arb"},
	})
	require.NoError(t, err)

	raw, err := w.Request(ctx, "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0xa4b1"`, string(raw))

	require.Len(t, events, 1)
	assert.Equal(t, provider.EventChainChanged, events[0].Type)

	_, err = w.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": "0x1"})
	require.NoError(t, err)
	raw, _ = w.Request(ctx, "eth_chainId")
	assert.JSONEq(t, `"0x1"`, string(raw))
}

func TestAddChain_WrongEndpoint(t *testing.T) {
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://arb": {chainID: 10}})

	_, err := w.Request(context.Background(), "wallet_addEthereumChain", models.AddChainParams{
		ChainID: "0xa4b1",
		RpcURLs: []string{"http://arb"},
	})
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeInvalidParams, code)
}

func TestSendTransaction(t *testing.T) {
	b := &fakeBackend{chainID: 11155111, nonce: 7, gasPrice: big.NewInt(3), gas: 50000}
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://sepolia": b})
	ctx := context.Background()
	_, err := w.Register(ctx, "http://sepolia", "Sepolia")
	require.NoError(t, err)

	gas := hexutil.Uint64(90000)
	raw, err := w.Request(ctx, "eth_sendTransaction", provider.TxRequest{
		From:     owner,
		To:       "0x1111111111111111111111111111111111111111",
		Data:     []byte{0x09, 0x5e, 0xa7, 0xb3},
		Gas:      &gas,
		GasPrice: (*hexutil.Big)(big.NewInt(5)),
	})
	require.NoError(t, err)

	require.Len(t, b.sent, 1)
	tx := b.sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(90000), tx.Gas())
	assert.Equal(t, int64(5), tx.GasPrice().Int64())

	var hash string
	require.NoError(t, json.Unmarshal(raw, &hash))
	assert.Equal(t, tx.Hash().Hex(), hash)
}

func TestSendTransaction_EstimatesWhenMissing(t *testing.T) {
	b := &fakeBackend{chainID: 1, gasPrice: big.NewInt(3), gas: 50000}
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://eth": b})
	ctx := context.Background()
	_, _ = w.Register(ctx, "http://eth", "Ethereum")

	_, err := w.Request(ctx, "eth_sendTransaction", provider.TxRequest{
		From: owner,
		To:   "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Equal(t, uint64(50000), b.sent[0].Gas())
	assert.Equal(t, int64(3), b.sent[0].GasPrice().Int64())
}

func TestSendTransaction_UnknownSender(t *testing.T) {
	b := &fakeBackend{chainID: 1}
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://eth": b})
	_, _ = w.Register(context.Background(), "http://eth", "Ethereum")

	_, err := w.Request(context.Background(), "eth_sendTransaction", provider.TxRequest{
		From: "0x2222222222222222222222222222222222222222",
		To:   "0x1111111111111111111111111111111111111111",
	})
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeUnauthorized, code)
	assert.Empty(t, b.sent)
}

func TestForwardsReads(t *testing.T) {
	b := &fakeBackend{chainID: 1}
	w := newTestWallet(t, nil, map[string]*fakeBackend{"http://eth": b})
	_, _ = w.Register(context.Background(), "http://eth", "Ethereum")

	raw, err := w.Request(context.Background(), "eth_gasPrice")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x2a"`, string(raw))
	assert.Equal(t, []string{"eth_gasPrice"}, b.forwarded)
}

func TestNoChain(t *testing.T) {
	w := newTestWallet(t, nil, nil)
	_, err := w.Request(context.Background(), "eth_chainId")
	code, _ := provider.ErrorCode(err)
	assert.Equal(t, provider.CodeChainDisconnected, code)
}

func TestRevokeEmitsEmptyAccounts(t *testing.T) {
	w := newTestWallet(t, nil, nil)
	w.Authorize()

	var got []provider.Event
	w.Subscribe(func(ev provider.Event) { got = append(got, ev) })
	w.Revoke()

	require.Len(t, got, 1)
	assert.Equal(t, provider.EventAccountsChanged, got[0].Type)
	assert.Empty(t, got[0].Accounts)

	raw, _ := w.Request(context.Background(), "eth_accounts")
	assert.JSONEq(t, `[]`, string(raw))
}
