package services

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"bridge/agent/internal/mocks"
	"bridge/agent/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	testOwner  = "0x00000000000000000000000000000000000000aa"
	testToken  = "0x1111111111111111111111111111111111111111"
	testToken2 = "0x3333333333333333333333333333333333333333"
	testToken3 = "0x4444444444444444444444444444444444444444"
	testBridge = "0x2222222222222222222222222222222222222222"
	testDest   = "WewDeXWyvHP7jJTs7tjLoQfoB72LLxJQqN"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

func testPair() models.BridgePair {
	return models.BridgePair{
		Environment: models.EnvProduction,
		EVM: models.EvmNetwork{
			NetworkID:             42161,
			ChainIDHex:            "0xa4b1",
			Name:                  "Arbitrum One",
			RpcURL:                "https://arb1.arbitrum.io/rpc",
			Explorer:              "https://arbiscan.io",
			BridgeContractAddress: testBridge,
			NativeCurrency:        models.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		},
		Hathor: models.HathorNetwork{NetworkID: 31, Name: "Hathor"},
		Tokens: []models.TokenDescriptor{{Symbol: "USDC", Address: testToken, Decimals: 6}},
	}
}

func testOrchestratorConfig() OrchestratorConfig {
	cfg := DefaultOrchestratorConfig()
	cfg.ApprovalTimeout = 300 * time.Millisecond
	cfg.BridgeTimeout = 300 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

func big10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

// newWallet returns a wallet on chainID that exposes testOwner and answers
// ERC20 reads from tokens.
func newWallet(chainID any, tokens *mocks.MockTokens) *mocks.MockProvider {
	p := mocks.NewMockProvider().
		Returns("eth_requestAccounts", []string{testOwner}).
		Returns("eth_accounts", []string{testOwner}).
		Returns("eth_chainId", chainID).
		Returns("eth_estimateGas", "0x5208").
		Returns("eth_gasPrice", "0x64").
		Returns("eth_sendTransaction", mocks.TxHash(1)).
		Returns("eth_getTransactionReceipt", mocks.Receipt(mocks.TxHash(1), "0x1"))
	if tokens != nil {
		p.Handle("eth_call", tokens.EthCall)
	}
	return p
}

func connected(t *testing.T, p *mocks.MockProvider) *ConnectionManager {
	t.Helper()
	m := NewConnectionManager(p, &mocks.MockSnapshotStore{}, testLogger(t))
	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	return m
}

// eventLog records broadcaster events.
type eventLog struct {
	mu     sync.Mutex
	events []models.BridgeStatusEvent
}

func record(b *EventBroadcaster) *eventLog {
	l := &eventLog{}
	b.Subscribe(func(ev models.BridgeStatusEvent) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, ev)
	})
	return l
}

func (l *eventLog) with(hash string, status models.EventStatus) []models.BridgeStatusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.BridgeStatusEvent
	for _, ev := range l.events {
		if ev.TransactionHash == hash && ev.Status == status {
			out = append(out, ev)
		}
	}
	return out
}
