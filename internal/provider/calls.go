package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"bridge/agent/internal/utils/eth"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxRequest is the eth_sendTransaction / eth_estimateGas parameter object.
type TxRequest struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
}

type callArgs struct {
	From string        `json:"from,omitempty"`
	To   string        `json:"to"`
	Data hexutil.Bytes `json:"data"`
}

func Accounts(ctx context.Context, p Provider, method string) ([]string, error) {
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", method, err)
	}
	return accounts, nil
}

func ChainID(ctx context.Context, p Provider) (int64, error) {
	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	return eth.ParseChainID(json.RawMessage(raw))
}

func Call(ctx context.Context, p Provider, from string, to common.Address, data []byte) ([]byte, error) {
	raw, err := p.Request(ctx, "eth_call", callArgs{From: from, To: to.Hex(), Data: data}, "latest")
	if err != nil {
		return nil, err
	}
	var out hexutil.Bytes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding eth_call result: %w", err)
	}
	return out, nil
}

func EstimateGas(ctx context.Context, p Provider, req TxRequest) (uint64, error) {
	raw, err := p.Request(ctx, "eth_estimateGas", req)
	if err != nil {
		return 0, err
	}
	n, err := eth.ParseQuantityJSON(raw)
	if err != nil {
		return 0, fmt.Errorf("decoding eth_estimateGas result: %w", err)
	}
	return n.Uint64(), nil
}

func GasPrice(ctx context.Context, p Provider) (*big.Int, error) {
	raw, err := p.Request(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}
	n, err := eth.ParseQuantityJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding eth_gasPrice result: %w", err)
	}
	return n, nil
}

func SendTransaction(ctx context.Context, p Provider, req TxRequest) (string, error) {
	raw, err := p.Request(ctx, "eth_sendTransaction", req)
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", fmt.Errorf("decoding eth_sendTransaction result: %w", err)
	}
	if !strings.HasPrefix(hash, "0x") {
		return "", fmt.Errorf("malformed transaction hash %q", hash)
	}
	return hash, nil
}

// TransactionReceipt returns nil, nil while the transaction is still pending.
func TransactionReceipt(ctx context.Context, p Provider, hash string) (*Receipt, error) {
	raw, err := p.Request(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, err
	}
	return DecodeReceipt(raw)
}
