package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"bridge/agent/internal/contracts"
	"bridge/agent/internal/provider"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type MockCall struct {
	Method string
	Params []any
}

// MockProvider is a scriptable wallet. Unhandled methods fail with 4200.
type MockProvider struct {
	mu       sync.Mutex
	handlers map[string]func(params []any) (any, error)
	calls    []MockCall
	subs     map[int]func(provider.Event)
	nextSub  int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		handlers: make(map[string]func(params []any) (any, error)),
		subs:     make(map[int]func(provider.Event)),
	}
}

func (m *MockProvider) Handle(method string, fn func(params []any) (any, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method] = fn
	return m
}

// Returns makes method always answer with result.
func (m *MockProvider) Returns(method string, result any) *MockProvider {
	return m.Handle(method, func([]any) (any, error) { return result, nil })
}

// Fails makes method always fail with err.
func (m *MockProvider) Fails(method string, err error) *MockProvider {
	return m.Handle(method, func([]any) (any, error) { return nil, err })
}

func (m *MockProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Params: params})
	fn, ok := m.handlers[method]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, provider.NewError(provider.CodeUnsupportedMethod, fmt.Sprintf("method %s not handled", method))
	}
	res, err := fn(params)
	if err != nil {
		return nil, err
	}
	if raw, ok := res.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(res)
}

func (m *MockProvider) Subscribe(handler func(provider.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

func (m *MockProvider) Emit(ev provider.Event) {
	m.mu.Lock()
	handlers := make([]func(provider.Event), 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (m *MockProvider) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *MockProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

func (m *MockProvider) CallsTo(method string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// SentCalls decodes the calldata of every eth_sendTransaction seen so far.
func (m *MockProvider) SentCalls() []*contracts.Call {
	var out []*contracts.Call
	for _, c := range m.CallsTo("eth_sendTransaction") {
		var req provider.TxRequest
		if err := provider.DecodeParam(c.Params, 0, &req); err != nil {
			continue
		}
		call, err := contracts.DecodeCall(req.Data)
		if err != nil {
			continue
		}
		out = append(out, call)
	}
	return out
}

// MockTokens answers eth_call for ERC20 reads, keyed by lowercase token address.
type MockTokens struct {
	mu          sync.Mutex
	Decimals    map[string]uint8
	DecimalsErr map[string]error
	Balances    map[string]*big.Int
	BalanceErr  map[string]error
	Allowances  map[string]*big.Int
}

func NewMockTokens() *MockTokens {
	return &MockTokens{
		Decimals:    map[string]uint8{},
		DecimalsErr: map[string]error{},
		Balances:    map[string]*big.Int{},
		BalanceErr:  map[string]error{},
		Allowances:  map[string]*big.Int{},
	}
}

func (t *MockTokens) Add(token string, decimals uint8, balance, allowance *big.Int) *MockTokens {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := strings.ToLower(token)
	t.Decimals[k] = decimals
	t.Balances[k] = balance
	t.Allowances[k] = allowance
	return t
}

func (t *MockTokens) EthCall(params []any) (any, error) {
	var args struct {
		To   string        `json:"to"`
		Data hexutil.Bytes `json:"data"`
	}
	if err := provider.DecodeParam(params, 0, &args); err != nil {
		return nil, err
	}
	call, err := contracts.DecodeCall(args.Data)
	if err != nil {
		return nil, provider.NewError(3, "execution reverted")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	k := strings.ToLower(args.To)

	var out []byte
	switch call.Method {
	case "decimals":
		if err := t.DecimalsErr[k]; err != nil {
			return nil, err
		}
		d, ok := t.Decimals[k]
		if !ok {
			return nil, provider.NewError(3, "execution reverted")
		}
		out, err = contracts.PackResult("decimals", d)
	case "balanceOf":
		if err := t.BalanceErr[k]; err != nil {
			return nil, err
		}
		out, err = contracts.PackResult("balanceOf", orZero(t.Balances[k]))
	case "allowance":
		out, err = contracts.PackResult("allowance", orZero(t.Allowances[k]))
	default:
		return nil, provider.NewError(3, "execution reverted")
	}
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Receipt builds a raw receipt as a node would return it.
func Receipt(hash string, status any) json.RawMessage {
	blob, _ := json.Marshal(map[string]any{
		"transactionHash": hash,
		"status":          status,
		"blockNumber":     "0x10",
		"gasUsed":         "0x5208",
	})
	return blob
}

// TxHash returns a deterministic 32-byte hash for tests.
func TxHash(n int) string {
	return common.BigToHash(big.NewInt(int64(n))).Hex()
}
