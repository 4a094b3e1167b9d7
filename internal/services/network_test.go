package services

import (
	"context"
	"errors"
	"testing"

	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureChain_AlreadyOnTarget(t *testing.T) {
	p := newWallet("0xa4b1", nil)
	g := NewNetworkGuard(connected(t, p), testLogger(t))

	require.NoError(t, g.EnsureChain(context.Background(), testPair().EVM))
	assert.Empty(t, p.CallsTo("wallet_switchEthereumChain"))
}

func TestEnsureChain_Switches(t *testing.T) {
	p := newWallet("0x1", nil).Returns("wallet_switchEthereumChain", nil)
	g := NewNetworkGuard(connected(t, p), testLogger(t))

	require.NoError(t, g.EnsureChain(context.Background(), testPair().EVM))

	calls := p.CallsTo("wallet_switchEthereumChain")
	require.Len(t, calls, 1)
	var params switchChainParams
	require.NoError(t, provider.DecodeParam(calls[0].Params, 0, &params))
	assert.Equal(t, "0xa4b1", params.ChainID)
	assert.Empty(t, p.CallsTo("wallet_addEthereumChain"))
}

func TestEnsureChain_AddsUnknownChain(t *testing.T) {
	p := newWallet("0x1", nil).
		Fails("wallet_switchEthereumChain", provider.NewError(provider.CodeUnrecognizedChain, "Unrecognized chain ID \"0xa4b1\".")).
		Returns("wallet_addEthereumChain", nil)
	g := NewNetworkGuard(connected(t, p), testLogger(t))

	require.NoError(t, g.EnsureChain(context.Background(), testPair().EVM))

	calls := p.CallsTo("wallet_addEthereumChain")
	require.Len(t, calls, 1)
	var params models.AddChainParams
	require.NoError(t, provider.DecodeParam(calls[0].Params, 0, &params))
	assert.Equal(t, models.AddChainParams{
		ChainID:           "0xa4b1",
		ChainName:         "Arbitrum One",
		NativeCurrency:    models.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RpcURLs:           []string{"https://arb1.arbitrum.io/rpc"},
		BlockExplorerURLs: []string{"https://arbiscan.io"},
	}, params)
}

func TestEnsureChain_Mismatch(t *testing.T) {
	cases := map[string]error{
		"rejected": provider.NewError(provider.CodeUserRejected, "User rejected the request."),
		"other":    errors.New("switch failed"),
	}
	for name, switchErr := range cases {
		p := newWallet("0x1", nil).Fails("wallet_switchEthereumChain", switchErr)
		g := NewNetworkGuard(connected(t, p), testLogger(t))

		err := g.EnsureChain(context.Background(), testPair().EVM)
		assert.ErrorIs(t, err, ErrNetworkMismatch, name)
		assert.Empty(t, p.CallsTo("wallet_addEthereumChain"), name)
	}
}

func TestEnsureChain_AddFails(t *testing.T) {
	p := newWallet("0x1", nil).
		Fails("wallet_switchEthereumChain", provider.NewError(provider.CodeUnrecognizedChain, "unknown chain")).
		Fails("wallet_addEthereumChain", provider.NewError(provider.CodeUserRejected, "User rejected the request."))
	g := NewNetworkGuard(connected(t, p), testLogger(t))

	assert.ErrorIs(t, g.EnsureChain(context.Background(), testPair().EVM), ErrNetworkMismatch)
}

func TestEnsureChain_NotConnected(t *testing.T) {
	p := newWallet("0x1", nil)
	m := NewConnectionManager(p, nil, testLogger(t))
	g := NewNetworkGuard(m, testLogger(t))

	assert.ErrorIs(t, g.EnsureChain(context.Background(), testPair().EVM), ErrNotConnected)
	assert.Empty(t, p.Calls())
}
