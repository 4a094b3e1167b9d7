package services

import (
	"context"

	"bridge/agent/internal/models"
	"bridge/agent/internal/provider"

	"go.uber.org/zap"
)

// NetworkGuard makes sure the wallet is on the bridge's source chain before any
// contract call.
type NetworkGuard struct {
	session Session
	logger  *zap.SugaredLogger
}

func NewNetworkGuard(session Session, logger *zap.SugaredLogger) *NetworkGuard {
	return &NetworkGuard{session: session, logger: logger}
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

func (g *NetworkGuard) EnsureChain(ctx context.Context, target models.EvmNetwork) error {
	p, err := g.session.Provider()
	if err != nil {
		return err
	}
	current, err := provider.ChainID(ctx, p)
	if err != nil {
		return newError(ErrNetworkMismatch, "Could not read the wallet's network.", err)
	}
	if current == target.NetworkID {
		return nil
	}

	g.logger.Infow("switching wallet network", "from", current, "to", target.NetworkID, "name", target.Name)
	_, err = p.Request(ctx, "wallet_switchEthereumChain", switchChainParams{ChainID: target.AddChainParams().ChainID})
	if err == nil {
		return nil
	}
	if code, ok := provider.ErrorCode(err); !ok || code != provider.CodeUnrecognizedChain {
		return newError(ErrNetworkMismatch, "Switch the wallet to "+target.Name+" to continue.", err)
	}

	g.logger.Infow("wallet does not know the network, adding it", "chainId", target.ChainIDHex, "name", target.Name)
	if _, err := p.Request(ctx, "wallet_addEthereumChain", target.AddChainParams()); err != nil {
		return newError(ErrNetworkMismatch, "Add "+target.Name+" to the wallet to continue.", err)
	}
	return nil
}
