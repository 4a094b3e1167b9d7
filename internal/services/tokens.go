package services

import (
	"context"
	"fmt"
	"math/big"

	"bridge/agent/internal/constants"
	"bridge/agent/internal/contracts"
	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// resolveToken accepts a configured symbol or a raw token address.
func resolveToken(pair models.BridgePair, symbolOrAddress string) (common.Address, error) {
	if t, ok := pair.Token(symbolOrAddress); ok {
		return common.HexToAddress(t.Address), nil
	}
	if common.IsHexAddress(symbolOrAddress) {
		return common.HexToAddress(symbolOrAddress), nil
	}
	return common.Address{}, fmt.Errorf("unknown token %q", symbolOrAddress)
}

// readDecimals falls back to 18 when the token does not answer decimals().
func readDecimals(ctx context.Context, p provider.Provider, token common.Address, logger *zap.SugaredLogger) uint8 {
	data, err := contracts.PackDecimals()
	if err == nil {
		var out []byte
		if out, err = provider.Call(ctx, p, "", token, data); err == nil {
			var d uint8
			if d, err = contracts.UnpackDecimals(out); err == nil {
				return d
			}
		}
	}
	logger.Warnw("decimals() failed, assuming default", "token", token.Hex(), "decimals", constants.DefaultDecimals, "error", err)
	return constants.DefaultDecimals
}

func readBalance(ctx context.Context, p provider.Provider, token, owner common.Address) (*big.Int, error) {
	data, err := contracts.PackBalanceOf(owner)
	if err != nil {
		return nil, err
	}
	out, err := provider.Call(ctx, p, owner.Hex(), token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackUint256("balanceOf", out)
}

func readAllowance(ctx context.Context, p provider.Provider, token, owner, spender common.Address) (*big.Int, error) {
	data, err := contracts.PackAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	out, err := provider.Call(ctx, p, owner.Hex(), token, data)
	if err != nil {
		return nil, err
	}
	return contracts.UnpackUint256("allowance", out)
}
