package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"bridge/agent/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBalances(t *testing.T) {
	tokens := mocks.NewMockTokens().
		Add(testToken, 6, big.NewInt(1_500_000), nil).
		Add(testToken2, 18, new(big.Int).Mul(big.NewInt(2), big10(18)), nil)
	l := NewBalanceLoader(connected(t, newWallet("0xa4b1", tokens)), testLogger(t))

	got, err := l.LoadBalances(context.Background(), []string{testToken, testToken2})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{testToken: 1.5, testToken2: 2}, got)
}

func TestLoadBalances_DecimalsFallback(t *testing.T) {
	tokens := mocks.NewMockTokens().
		Add(testToken, 6, big.NewInt(1_000_000), nil).
		Add(testToken2, 6, new(big.Int).Mul(big.NewInt(3), big10(18)), nil).
		Add(testToken3, 6, big.NewInt(2_000_000), nil)
	tokens.DecimalsErr[strings.ToLower(testToken2)] = errors.New("execution reverted")
	l := NewBalanceLoader(connected(t, newWallet("0xa4b1", tokens)), testLogger(t))

	got, err := l.LoadBalances(context.Background(), []string{testToken, testToken2, testToken3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[testToken])
	assert.Equal(t, 3.0, got[testToken2], "18-decimal fallback")
	assert.Equal(t, 2.0, got[testToken3])
}

func TestLoadBalances_FailuresYieldZero(t *testing.T) {
	tokens := mocks.NewMockTokens().Add(testToken, 6, big.NewInt(1_000_000), nil)
	tokens.Add(testToken2, 6, nil, nil)
	tokens.BalanceErr[strings.ToLower(testToken2)] = errors.New("header not found")
	l := NewBalanceLoader(connected(t, newWallet("0xa4b1", tokens)), testLogger(t))

	got, err := l.LoadBalances(context.Background(), []string{testToken, testToken2, "not-a-token"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{testToken: 1, testToken2: 0, "not-a-token": 0}, got)
}

func TestLoadBalances_NotConnected(t *testing.T) {
	m := NewConnectionManager(newWallet("0xa4b1", nil), nil, testLogger(t))
	l := NewBalanceLoader(m, testLogger(t))

	_, err := l.LoadBalances(context.Background(), []string{testToken})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLoadBalances_SnapshotKeepsOtherTokens(t *testing.T) {
	tokens := mocks.NewMockTokens().
		Add(testToken, 6, big.NewInt(1_000_000), nil).
		Add(testToken2, 6, big.NewInt(2_000_000), nil)
	l := NewBalanceLoader(connected(t, newWallet("0xa4b1", tokens)), testLogger(t))

	_, err := l.LoadBalances(context.Background(), []string{testToken, testToken2})
	require.NoError(t, err)

	tokens.Add(testToken, 6, big.NewInt(5_000_000), nil)
	_, err = l.LoadBalances(context.Background(), []string{testToken})
	require.NoError(t, err)

	snap := l.Snapshot()
	assert.Equal(t, map[string]float64{testToken: 5, testToken2: 2}, snap.Balances)
}
