package eth

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseQuantity accepts the encodings wallets use for numeric values: hex
// strings, decimal strings, JSON numbers and big integers.
func ParseQuantity(v any) (*big.Int, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("empty quantity")
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("empty quantity")
		}
		return new(big.Int).Set(x), nil
	case *hexutil.Big:
		return new(big.Int).Set(x.ToInt()), nil
	case hexutil.Uint64:
		return new(big.Int).SetUint64(uint64(x)), nil
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return nil, fmt.Errorf("non-integer quantity %v", x)
		}
		return big.NewInt(int64(x)), nil
	case json.Number:
		return parseQuantityString(x.String())
	case json.RawMessage:
		return ParseQuantityJSON(x)
	case string:
		return parseQuantityString(x)
	default:
		return nil, fmt.Errorf("unsupported quantity type %T", v)
	}
}

func ParseQuantityJSON(raw json.RawMessage) (*big.Int, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding quantity: %w", err)
	}
	return ParseQuantity(v)
}

func parseQuantityString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		out, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex quantity %q", s)
		}
		return out, nil
	}
	out, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal quantity %q", s)
	}
	return out, nil
}

// ParseChainID normalizes an eth_chainId result into an integer.
func ParseChainID(v any) (int64, error) {
	n, err := ParseQuantity(v)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	if !n.IsInt64() || n.Sign() <= 0 {
		return 0, fmt.Errorf("chain id out of range: %s", n)
	}
	return n.Int64(), nil
}

func ChainIDHex(id int64) string {
	return hexutil.EncodeBig(big.NewInt(id))
}

// ParseStatus normalizes a receipt status field into a success flag. Wallets
// have been seen returning booleans, hex strings, numbers and big integers.
func ParseStatus(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case json.RawMessage:
		var inner any
		dec := json.NewDecoder(strings.NewReader(string(x)))
		dec.UseNumber()
		if err := dec.Decode(&inner); err != nil {
			return false, fmt.Errorf("decoding status: %w", err)
		}
		return ParseStatus(inner)
	}
	n, err := ParseQuantity(v)
	if err != nil {
		return false, fmt.Errorf("receipt status: %w", err)
	}
	return n.Sign() != 0, nil
}
