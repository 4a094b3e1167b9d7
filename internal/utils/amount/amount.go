package amount

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var (
	ErrMalformed   = errors.New("malformed amount")
	ErrNotPositive = errors.New("amount must be positive")
	ErrTooSmall    = errors.New("amount is below the token's smallest unit")

	decimalRe = regexp.MustCompile(`^(\d*)(?:\.(\d*))?$`)
)

// MaxDecimals bounds the decimal counts accepted from token contracts.
const MaxDecimals = 36

// ToSmallestUnit scales a decimal string by 10^decimals, truncating any digits
// beyond the token's precision. The computation never goes through a float.
func ToSmallestUnit(amount string, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("unsupported decimals %d", decimals)
	}
	s := strings.TrimSpace(amount)
	s = strings.TrimPrefix(s, "+")

	m := decimalRe.FindStringSubmatch(s)
	if m == nil || m[1]+m[2] == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, amount)
	}
	whole, frac := m[1], m[2]

	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	} else {
		frac += strings.Repeat("0", int(decimals)-len(frac))
	}

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		if isZero(m[1]) && isZero(m[2]) {
			return nil, ErrNotPositive
		}
		return nil, ErrTooSmall
	}

	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, amount)
	}
	return out, nil
}

func isZero(s string) bool {
	return strings.Trim(s, "0") == ""
}

// Format renders raw as a decimal string with trailing zeros removed.
func Format(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	neg := raw.Sign() < 0
	s := new(big.Int).Abs(raw).String()
	if decimals > 0 {
		if len(s) <= int(decimals) {
			s = strings.Repeat("0", int(decimals)-len(s)+1) + s
		}
		cut := len(s) - int(decimals)
		whole, frac := s[:cut], strings.TrimRight(s[cut:], "0")
		s = whole
		if frac != "" {
			s += "." + frac
		}
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ToFloat converts raw to a human readable float. Only for display.
func ToFloat(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	div := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	v, _ := new(big.Float).Quo(f, div).Float64()
	return v
}
