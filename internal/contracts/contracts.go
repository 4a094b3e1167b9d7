package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

const bridgeJSON = `[
	{"inputs":[{"name":"chainId","type":"uint256"},{"name":"tokenToUse","type":"address"},{"name":"to","type":"string"},{"name":"amount","type":"uint256"}],"name":"receiveTokensTo","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	ERC20  = mustParse(erc20JSON)
	Bridge = mustParse(bridgeJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parsing abi: %v", err))
	}
	return parsed
}

func PackDecimals() ([]byte, error) {
	return ERC20.Pack("decimals")
}

func PackBalanceOf(owner common.Address) ([]byte, error) {
	return ERC20.Pack("balanceOf", owner)
}

func PackAllowance(owner, spender common.Address) ([]byte, error) {
	return ERC20.Pack("allowance", owner, spender)
}

func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return ERC20.Pack("approve", spender, amount)
}

func PackReceiveTokensTo(chainID int64, token common.Address, to string, amount *big.Int) ([]byte, error) {
	return Bridge.Pack("receiveTokensTo", big.NewInt(chainID), token, to, amount)
}

func UnpackDecimals(data []byte) (uint8, error) {
	out, err := ERC20.Unpack("decimals", data)
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", out[0])
	}
	return d, nil
}

// UnpackUint256 decodes the single uint256 result of balanceOf or allowance.
func UnpackUint256(method string, data []byte) (*big.Int, error) {
	out, err := ERC20.Unpack(method, data)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return v, nil
}

// Call is decoded calldata, used by fakes and by logging.
type Call struct {
	Method string
	Args   []any
}

// DecodeCall resolves calldata against the ERC20 and bridge ABIs.
func DecodeCall(data []byte) (*Call, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	for _, parsed := range []abi.ABI{ERC20, Bridge} {
		m, err := parsed.MethodById(data[:4])
		if err != nil {
			continue
		}
		args, err := m.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, fmt.Errorf("unpacking %s args: %w", m.Name, err)
		}
		return &Call{Method: m.Name, Args: args}, nil
	}
	return nil, fmt.Errorf("unknown selector %x", data[:4])
}

// PackResult encodes return values of method, as a node would for eth_call.
func PackResult(method string, values ...any) ([]byte, error) {
	for _, parsed := range []abi.ABI{ERC20, Bridge} {
		if m, ok := parsed.Methods[method]; ok {
			return m.Outputs.Pack(values...)
		}
	}
	return nil, fmt.Errorf("unknown method %s", method)
}
