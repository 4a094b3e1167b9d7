package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"bridge/agent/internal/models"
	"bridge/agent/internal/utils/address"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed networks.yaml
var defaultYAML []byte

type WalletConfig struct {
	KeystorePath string   `mapstructure:"keystorePath"`
	Password     string   `mapstructure:"password"`
	RpcURLs      []string `mapstructure:"rpcUrls"`
}

type BridgeConfig struct {
	ApprovalTimeout       time.Duration `mapstructure:"approvalTimeout"`
	BridgeTimeout         time.Duration `mapstructure:"bridgeTimeout"`
	PollInterval          time.Duration `mapstructure:"pollInterval"`
	GasPriceMarkupPercent int64         `mapstructure:"gasPriceMarkupPercent"`
	ApproveGasFallback    uint64        `mapstructure:"approveGasFallback"`
	BridgeGasFallback     uint64        `mapstructure:"bridgeGasFallback"`
}

type networkConfig struct {
	EVM    models.EvmNetwork        `mapstructure:"evm"`
	Hathor models.HathorNetwork     `mapstructure:"hathor"`
	Tokens []models.TokenDescriptor `mapstructure:"tokens"`
}

type Config struct {
	Environment string                   `mapstructure:"environment"`
	Networks    map[string]networkConfig `mapstructure:"networks"`
	Wallet      WalletConfig             `mapstructure:"wallet"`
	Store       struct {
		SnapshotPath string `mapstructure:"snapshotPath"`
	} `mapstructure:"store"`
	API struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"api"`
	Bridge BridgeConfig `mapstructure:"bridge"`

	pair models.BridgePair
}

// Load reads .env (optional), the embedded defaults, an optional bridge.yaml
// from the working directory or configPath, and BRIDGE_* environment overrides.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultYAML)); err != nil {
		return nil, fmt.Errorf("reading embedded defaults: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("bridge")
		v.AddConfigPath(".")
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading bridge config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.resolve(v); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve picks the environment's bridge pair and applies the flat env overrides
// (BRIDGE_EVM_RPCURL and friends) that do not depend on the environment name.
func (c *Config) resolve(v *viper.Viper) error {
	env, err := models.ParseEnvironment(c.Environment)
	if err != nil {
		return err
	}
	n, ok := c.Networks[string(env)]
	if !ok {
		return fmt.Errorf("no networks configured for environment %s", env)
	}

	for key, dst := range map[string]*string{
		"evm.rpcUrl":                &n.EVM.RpcURL,
		"evm.bridgeContractAddress": &n.EVM.BridgeContractAddress,
		"evm.explorer":              &n.EVM.Explorer,
		"hathor.federationAddress":  &n.Hathor.FederationAddress,
		"hathor.nodeUrl":            &n.Hathor.NodeURL,
	} {
		_ = v.BindEnv(key, "BRIDGE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	if n.EVM.BridgeContractAddress != "" {
		checksummed, err := address.Checksummed(n.EVM.BridgeContractAddress)
		if err != nil {
			return fmt.Errorf("bridge contract: %w", err)
		}
		n.EVM.BridgeContractAddress = checksummed
	}
	for i, t := range n.Tokens {
		checksummed, err := address.Checksummed(t.Address)
		if err != nil {
			return fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		n.Tokens[i].Address = checksummed
	}

	c.pair = models.BridgePair{
		Environment: env,
		EVM:         n.EVM,
		Hathor:      n.Hathor,
		Tokens:      n.Tokens,
	}
	if c.Bridge.GasPriceMarkupPercent < 100 {
		return fmt.Errorf("gasPriceMarkupPercent must be at least 100, got %d", c.Bridge.GasPriceMarkupPercent)
	}
	return nil
}

func (c *Config) Pair() models.BridgePair {
	return c.pair
}

// WalletRPCURLs are the endpoints the local wallet knows at startup; without
// any configured, it starts on the bridge's own chain.
func (c *Config) WalletRPCURLs() []string {
	if len(c.Wallet.RpcURLs) > 0 {
		return c.Wallet.RpcURLs
	}
	return []string{c.pair.EVM.RpcURL}
}
