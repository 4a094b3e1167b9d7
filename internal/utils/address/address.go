package address

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Checksummed validates an EVM address and returns its EIP-55 form.
func Checksummed(addressStr string) (string, error) {
	addressStr = strings.TrimSpace(addressStr)
	if !common.IsHexAddress(addressStr) {
		return "", fmt.Errorf("invalid address: %s", addressStr)
	}
	return common.HexToAddress(addressStr).Hex(), nil
}

// Equal compares two EVM addresses ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
