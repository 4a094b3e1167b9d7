package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"bridge/agent/internal/app"
	"bridge/agent/internal/config"
	"bridge/agent/internal/logging"
	"bridge/agent/internal/wallet"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	assumeYes  bool

	bridgeApp *app.App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge ERC20 tokens from an EVM chain to Hathor",
		Long: `bridge drives the approve and receiveTokensTo transactions of the
EVM to Hathor token bridge using the local keystore wallet.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file overriding the embedded defaults")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve wallet prompts without asking")

	rootCmd.AddCommand(
		newStatusCommand(),
		newConnectCommand(),
		newDisconnectCommand(),
		newSwitchCommand(),
		newBalancesCommand(),
		newApproveCommand(),
		newSendCommand(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if bridgeApp != nil {
		bridgeApp.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(true)
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Wallet.Password == "" {
		pw, err := readSecret("Keystore password: ")
		if err != nil {
			return err
		}
		cfg.Wallet.Password = pw
	}

	bridgeApp, err = app.New(cmd.Context(), cfg, consent, logger)
	if err != nil {
		return err
	}
	bridgeApp.Restore(cmd.Context())
	return nil
}

var errDeclined = errors.New("declined")

// consent is the CLI's wallet prompt.
var consent wallet.Consent = func(ctx context.Context, method, summary string) error {
	if assumeYes {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("%w: %s needs confirmation, rerun with --yes", errDeclined, method)
	}
	fmt.Fprintf(os.Stderr, "Wallet request %s: %s\nApprove? [y/N] ", method, summary)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	}
	return errDeclined
}

func readSecret(label string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("keystore password is empty, set BRIDGE_WALLET_PASSWORD")
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("password input failed: %w", err)
	}
	return string(b), nil
}
