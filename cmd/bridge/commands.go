package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"bridge/agent/internal/models"
	"bridge/agent/internal/services"

	"github.com/spf13/cobra"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet session and the configured bridge pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(struct {
				Session models.ConnectionState `json:"session"`
				Pair    models.BridgePair      `json:"pair"`
			}{bridgeApp.Connection.State(), bridgeApp.Config.Pair()})
		},
	}
}

func newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Grant the bridge access to the keystore account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := bridgeApp.Connection.Connect(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
}

func newDisconnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bridgeApp.Wallet.Revoke()
			return bridgeApp.Connection.Disconnect(cmd.Context())
		},
	}
}

func newSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch",
		Short: "Switch the wallet to the bridge's source chain, adding it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bridgeApp.Guard.EnsureChain(cmd.Context(), bridgeApp.Config.Pair().EVM); err != nil {
				return err
			}
			return printJSON(bridgeApp.Connection.State())
		},
	}
}

func newBalancesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balances [token...]",
		Short: "Show token balances of the connected account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair := bridgeApp.Config.Pair()
			if err := bridgeApp.Guard.EnsureChain(cmd.Context(), pair.EVM); err != nil {
				return err
			}
			tokens := args
			if len(tokens) == 0 {
				tokens = pair.TokenAddresses()
			}
			balances, err := bridgeApp.Balances.LoadBalances(cmd.Context(), tokens)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(balances))
			for k := range balances {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				label := k
				if t, ok := pair.Token(k); ok {
					label = t.Symbol
				}
				fmt.Printf("%-10s %v\n", label, balances[k])
			}
			return nil
		},
	}
}

func newApproveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <token> <amount>",
		Short: "Allow the bridge contract to spend amount of token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ValidateAmount(args[1]); err != nil {
				return err
			}
			if err := bridgeApp.Guard.EnsureChain(cmd.Context(), bridgeApp.Config.Pair().EVM); err != nil {
				return err
			}
			out, err := bridgeApp.Orchestrator.Approve(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("approval sent: %s\n", out.TransactionHash)
			return awaitSettled(out.TransactionHash)
		},
	}
}

func newSendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "send <token> <amount> <hathor-address>",
		Short: "Bridge amount of token to a Hathor address",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ValidateAmount(args[1]); err != nil {
				return err
			}
			if err := bridgeApp.Guard.EnsureChain(cmd.Context(), bridgeApp.Config.Pair().EVM); err != nil {
				return err
			}
			out, err := bridgeApp.Orchestrator.BridgeTokenToHathor(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			if out.Status == models.OutcomeApprovalNeeded {
				fmt.Printf("allowance too low, run: bridge approve %s %s\n", args[0], args[1])
				return nil
			}
			fmt.Printf("bridge transaction sent: %s\n", out.TransactionHash)
			return awaitSettled(out.TransactionHash)
		},
	}
}

// awaitSettled blocks until the transaction's receipt watcher has published
// its terminal event and reports it.
func awaitSettled(txHash string) error {
	bridgeApp.Orchestrator.Wait()
	ev, ok := bridgeApp.Events.Last(txHash)
	if !ok {
		return fmt.Errorf("no outcome recorded for %s", txHash)
	}
	if ev.Status == models.StatusFailed {
		return fmt.Errorf("%s: %s", txHash, ev.Error)
	}
	explorer := bridgeApp.Config.Pair().EVM.Explorer
	if explorer != "" {
		fmt.Printf("%s %s/tx/%s\n", ev.Status, explorer, txHash)
	} else {
		fmt.Printf("%s %s\n", ev.Status, txHash)
	}
	return nil
}
