package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bridge/agent/internal/provider"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{provider.NewError(4001, "MetaMask Tx Signature: User denied transaction signature."), ErrCancelled},
		{errors.New("user rejected the request"), ErrCancelled},
		{errors.New("Request cancelled by user"), ErrCancelled},
		{errors.New("Transaction was not mined within 750 seconds (timeout)"), ErrTransactionTimeout},
		{fmt.Errorf("call: %w", errors.New("context deadline exceeded")), ErrTransactionTimeout},
		{provider.NewError(3, "execution reverted: ERC20: transfer amount exceeds balance"), ErrTransactionReverted},
		{context.DeadlineExceeded, ErrTransactionTimeout},
		{context.Canceled, ErrAbandoned},
		{fmt.Errorf("Post \"http://node\": %w", context.Canceled), ErrAbandoned},
		{errors.New("insufficient funds for gas * price + value"), ErrUnknownProvider},
	}
	for _, c := range cases {
		got := Classify(c.err)
		assert.ErrorIs(t, got, c.kind, "error %q", c.err)
		assert.ErrorIs(t, got, c.err, "cause is kept")
	}
}

func TestClassify_MessageHidesProviderText(t *testing.T) {
	raw := "MetaMask Tx Signature: User denied transaction signature."
	got := Classify(provider.NewError(4001, raw))
	assert.NotContains(t, got.Error(), raw)
	assert.NotContains(t, got.Error(), "MetaMask")
}

func TestClassify_TruncatesUnknown(t *testing.T) {
	raw := strings.Repeat("x", 500)
	got := Classify(errors.New(raw))
	assert.ErrorIs(t, got, ErrUnknownProvider)
	assert.Less(t, len(got.Error()), 200)
}

func TestClassify_KeepsBridgeError(t *testing.T) {
	in := newError(ErrApprovalFailed, "approval failed", nil)
	assert.Same(t, in, Classify(fmt.Errorf("wrap: %w", in)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))
}

func TestClassify_CallerCancelIsNotWalletRejection(t *testing.T) {
	got := Classify(fmt.Errorf("request: %w", context.Canceled))
	assert.NotErrorIs(t, got, ErrCancelled)
	assert.NotContains(t, got.Error(), "cancelled in the wallet")
}
