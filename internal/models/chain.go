package models

import (
	"fmt"
	"strings"
)

type Environment string

const (
	EnvTest       Environment = "test"
	EnvProduction Environment = "production"
)

func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case EnvTest, "testnet", "":
		return EnvTest, nil
	case EnvProduction, "mainnet", "prod":
		return EnvProduction, nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

type NativeCurrency struct {
	Name     string `json:"name" mapstructure:"name"`
	Symbol   string `json:"symbol" mapstructure:"symbol"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
}

// EvmNetwork describes the source chain and the bridge contract deployed on it.
type EvmNetwork struct {
	NetworkID             int64          `json:"networkId" mapstructure:"networkId"`
	ChainIDHex            string         `json:"chainIdHex" mapstructure:"chainIdHex"`
	Name                  string         `json:"name" mapstructure:"name"`
	RpcURL                string         `json:"rpcUrl" mapstructure:"rpcUrl"`
	Explorer              string         `json:"explorer" mapstructure:"explorer"`
	BridgeContractAddress string         `json:"bridgeContractAddress" mapstructure:"bridgeContractAddress"`
	NativeCurrency        NativeCurrency `json:"nativeCurrency" mapstructure:"nativeCurrency"`
}

type HathorNetwork struct {
	NetworkID         int64  `json:"networkId" mapstructure:"networkId"`
	Name              string `json:"name" mapstructure:"name"`
	FederationAddress string `json:"federationAddress" mapstructure:"federationAddress"`
	NodeURL           string `json:"nodeUrl" mapstructure:"nodeUrl"`
}

type TokenDescriptor struct {
	Symbol    string `json:"symbol" mapstructure:"symbol"`
	Address   string `json:"address" mapstructure:"address"`
	Decimals  uint8  `json:"decimals" mapstructure:"decimals"`
	HathorUID string `json:"hathorUid,omitempty" mapstructure:"hathorUid"`
}

// BridgePair holds both sides of the bridge for one environment. Neither side
// points back at the other.
type BridgePair struct {
	Environment Environment       `json:"environment"`
	EVM         EvmNetwork        `json:"evm"`
	Hathor      HathorNetwork     `json:"hathor"`
	Tokens      []TokenDescriptor `json:"tokens"`
}

func (p BridgePair) Token(symbolOrAddress string) (TokenDescriptor, bool) {
	for _, t := range p.Tokens {
		if strings.EqualFold(t.Symbol, symbolOrAddress) || strings.EqualFold(t.Address, symbolOrAddress) {
			return t, true
		}
	}
	return TokenDescriptor{}, false
}

func (p BridgePair) TokenAddresses() []string {
	out := make([]string, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		out = append(out, t.Address)
	}
	return out
}

// AddChainParams is the wallet_addEthereumChain (EIP-3085) parameter object.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RpcURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func (n EvmNetwork) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:        strings.ToLower(n.ChainIDHex),
		ChainName:      n.Name,
		NativeCurrency: n.NativeCurrency,
		RpcURLs:        []string{n.RpcURL},
	}
	if n.Explorer != "" {
		p.BlockExplorerURLs = []string{n.Explorer}
	}
	return p
}
