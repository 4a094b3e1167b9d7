package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bridge/agent/internal/app"
	"bridge/agent/internal/config"
	"bridge/agent/internal/logging"
	"bridge/agent/internal/models"
	"bridge/agent/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to a config file overriding the embedded defaults")
	flag.Parse()

	logger, err := logging.New(false)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalw("failed to load config", "error", err)
	}
	pair := cfg.Pair()
	logger.Infow("config loaded", "environment", pair.Environment, "evm", pair.EVM.Name, "hathor", pair.Hathor.Name, "tokens", len(pair.Tokens))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The agent is the user's own local wallet: requests are approved without prompting.
	a, err := app.New(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatalw("failed to initialize", "error", err)
	}
	defer a.Close()

	if accounts := a.Keys.Accounts(ctx); len(accounts) == 0 {
		logger.Warnw("keystore is empty, run cmd/init to import a key", "path", cfg.Wallet.KeystorePath)
	}
	if a.Restore(ctx) {
		st := a.Connection.State()
		logger.Infow("resumed previous session", "address", st.Address, "chainId", st.ChainID)
	}

	unsubscribe := a.Events.Subscribe(func(ev models.BridgeStatusEvent) {
		logger.Infow("bridge transaction update", "status", ev.Status, "phase", ev.Phase, "txHash", ev.TransactionHash, "error", ev.Error)
	})
	defer unsubscribe()

	api := services.NewApiService(cfg.API.Addr, pair, a.Connection, a.Guard, a.Balances, a.Orchestrator, a.Events, logger.Named("api"))
	go func() {
		logger.Infow("API listening", "addr", cfg.API.Addr)
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Infow("stopping")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("api shutdown", "error", err)
	}

	done := make(chan struct{})
	go func() {
		a.Orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warnw("pending transactions still unconfirmed at exit, check the explorer")
	}
}
