package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bridge/agent/internal/constants"
	"bridge/agent/internal/provider"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrConnectionRejected  = errors.New("connection rejected")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrNetworkMismatch     = errors.New("network mismatch")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDestination  = errors.New("invalid destination address")
	ErrGasEstimation       = errors.New("gas estimation failed")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrTransactionTimeout  = errors.New("transaction timeout")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrCancelled           = errors.New("cancelled")
	ErrAbandoned           = errors.New("request abandoned")
	ErrUnknownProvider     = errors.New("unknown provider error")
)

// BridgeError pairs an error kind with a message safe to show to users. The
// provider's own text stays in Cause.
type BridgeError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *BridgeError) Error() string { return e.Message }

func (e *BridgeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newError(kind error, msg string, cause error) *BridgeError {
	return &BridgeError{Kind: kind, Message: msg, Cause: cause}
}

var (
	rejectionPatterns = []string{"denied", "rejected", "cancel"}
	timeoutPatterns   = []string{"timeout", "timed out", "deadline exceeded"}
	revertPatterns    = []string{"revert", "execution failed", "execution error", "out of gas", "invalid opcode"}
)

// Classify maps a raw provider error onto the error taxonomy.
func Classify(err error) *BridgeError {
	if err == nil {
		return nil
	}
	var berr *BridgeError
	if errors.As(err, &berr) {
		return berr
	}

	// A cancelled context means the caller left, not that the wallet declined.
	if errors.Is(err, context.Canceled) {
		return abandoned(err)
	}
	if code, ok := provider.ErrorCode(err); ok && code == provider.CodeUserRejected {
		return newError(ErrCancelled, "Transaction cancelled in the wallet.", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, rejectionPatterns):
		return newError(ErrCancelled, "Transaction cancelled in the wallet.", err)
	case containsAny(msg, timeoutPatterns):
		return newError(ErrTransactionTimeout, "The network did not respond in time. The transaction may still confirm; check the explorer before retrying.", err)
	case containsAny(msg, revertPatterns):
		return newError(ErrTransactionReverted, "The transaction was reverted by the contract.", err)
	default:
		return newError(ErrUnknownProvider, fmt.Sprintf("The network rejected the transaction: %s", Truncate(err.Error(), constants.MaxErrorMessageLen)), err)
	}
}

func abandoned(cause error) *BridgeError {
	return newError(ErrAbandoned, "The request was abandoned before the wallet answered. The transaction may still be sent; check the wallet before retrying.", cause)
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Truncate shortens s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
