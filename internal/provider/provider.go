package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 / EIP-3085 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
)

type EventType string

const (
	EventAccountsChanged EventType = "accountsChanged"
	EventChainChanged    EventType = "chainChanged"
)

type Event struct {
	Type     EventType
	Accounts []string
	ChainID  any
}

// Provider is an injected wallet, shaped after EIP-1193.
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Subscribe(handler func(Event)) (unsubscribe func())
}

// RPCError satisfies go-ethereum's rpc.Error and rpc.DataError so errors from
// a node and errors raised by a wallet are inspected the same way.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func (e *RPCError) ErrorCode() int { return e.Code }

func (e *RPCError) ErrorData() any { return e.Data }

var (
	_ rpc.Error     = (*RPCError)(nil)
	_ rpc.DataError = (*RPCError)(nil)
)

func NewError(code int, msg string) *RPCError {
	return &RPCError{Code: code, Message: msg}
}

// ErrorCode extracts a JSON-RPC error code anywhere in err's chain.
func ErrorCode(err error) (int, bool) {
	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return rerr.ErrorCode(), true
	}
	return 0, false
}

// DecodeParam decodes params[i] into out. Params may arrive as Go values or raw JSON.
func DecodeParam(params []any, i int, out any) error {
	if i >= len(params) {
		return NewError(CodeInvalidParams, fmt.Sprintf("missing param %d", i))
	}
	var blob []byte
	switch p := params[i].(type) {
	case json.RawMessage:
		blob = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return NewError(CodeInvalidParams, fmt.Sprintf("param %d: %v", i, err))
		}
		blob = b
	}
	if err := json.Unmarshal(blob, out); err != nil {
		return NewError(CodeInvalidParams, fmt.Sprintf("param %d: %v", i, err))
	}
	return nil
}
