package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bridge/agent/internal/clients"
	"bridge/agent/internal/config"
	"bridge/agent/internal/services"
	"bridge/agent/internal/stores"
	"bridge/agent/internal/wallet"

	"go.uber.org/zap"
)

// App is the wired component graph shared by the agent and the CLI.
type App struct {
	Config       *config.Config
	Keys         *stores.LocalKeyStore
	Snapshots    stores.SnapshotStore
	Wallet       *wallet.KeystoreWallet
	Connection   *services.ConnectionManager
	Guard        *services.NetworkGuard
	Balances     *services.BalanceLoader
	Orchestrator *services.TransactionOrchestrator
	Events       *services.EventBroadcaster

	logger *zap.SugaredLogger
}

func New(ctx context.Context, cfg *config.Config, consent wallet.Consent, logger *zap.SugaredLogger) (*App, error) {
	if cfg.Wallet.Password == "" {
		return nil, errors.New("keystore password is empty, set BRIDGE_WALLET_PASSWORD")
	}
	ks, err := stores.NewLocalKeyStore(cfg.Wallet.Password, cfg.Wallet.KeystorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.SnapshotPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	snaps, err := stores.NewLocalSnapshotStore(cfg.Store.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
	}

	pair := cfg.Pair()
	w := wallet.NewKeystoreWallet(ks, consent, logger.Named("wallet"))
	for _, url := range cfg.WalletRPCURLs() {
		name := "custom"
		if url == pair.EVM.RpcURL {
			name = pair.EVM.Name
		}
		if _, err := w.Register(ctx, url, name); err != nil {
			logger.Warnw("failed to register chain with wallet", "rpcUrl", url, "error", err)
		}
	}

	var validator services.AddressValidator
	if pair.Hathor.NodeURL != "" {
		hathor := clients.NewHathorNodeClient(pair.Hathor.NodeURL)
		if v, err := hathor.Version(ctx); err != nil {
			logger.Warnw("hathor node unreachable", "nodeUrl", pair.Hathor.NodeURL, "error", err)
		} else {
			logger.Infow("hathor node reachable", "nodeUrl", pair.Hathor.NodeURL, "version", v.Version, "network", v.Network)
		}
		validator = hathor
	}

	b := cfg.Bridge
	orchCfg := services.OrchestratorConfig{
		ApprovalTimeout:       b.ApprovalTimeout,
		BridgeTimeout:         b.BridgeTimeout,
		PollInterval:          b.PollInterval,
		GasPriceMarkupPercent: b.GasPriceMarkupPercent,
		ApproveGasFallback:    b.ApproveGasFallback,
		BridgeGasFallback:     b.BridgeGasFallback,
	}

	svcLog := logger.Named("bridge")
	cm := services.NewConnectionManager(w, snaps, svcLog)
	events := services.NewEventBroadcaster()
	return &App{
		Config:       cfg,
		Keys:         ks,
		Snapshots:    snaps,
		Wallet:       w,
		Connection:   cm,
		Guard:        services.NewNetworkGuard(cm, svcLog),
		Balances:     services.NewBalanceLoader(cm, svcLog),
		Orchestrator: services.NewTransactionOrchestrator(cm, pair, events, validator, orchCfg, svcLog),
		Events:       events,
		logger:       logger,
	}, nil
}

// Restore resumes a session persisted by an earlier run. The wallet
// remembers that it already granted access to the snapshot's account.
func (a *App) Restore(ctx context.Context) bool {
	snap, err := a.Snapshots.Load(ctx)
	if err != nil {
		return false
	}
	if snap.Connected && a.Keys.HasKey(ctx, snap.Address) {
		a.Wallet.Authorize()
		if err := a.Wallet.SelectAccount(ctx, snap.Address); err != nil {
			a.logger.Warnw("failed to select snapshot account", "address", snap.Address, "error", err)
		}
	}
	_, ok := a.Connection.Restore(ctx)
	return ok
}

func (a *App) Close() {
	a.Wallet.Close()
	if err := a.Snapshots.Close(); err != nil {
		a.logger.Warnw("failed to close snapshot store", "error", err)
	}
	_ = a.logger.Sync()
}
