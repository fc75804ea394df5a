package main

import (
	"context"
	"fmt"
	"strings"
	"xp-ledger/internal/domain"
	"xp-ledger/internal/presenter"
	"xp-ledger/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	configID    int64
	configKey   string
	configPrice string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change your id, API key and price per loss",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved config",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the saved config and refresh the ledger",
	Long: `Replace the saved config as a whole and refresh the ledger.

Flags that are not given are saved empty, exactly like clearing a field.`,
	Example: `  xpledger config set --id 2531271 --key ABCDEF0123456789 --price 500000`,
	RunE:    runConfigSet,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return withService(cmd.Context(), func(ctx context.Context, svc *service.LedgerService) error {
		cfg, err := svc.LoadConfig(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !cfg.Configured() {
			fmt.Fprintln(out, presenter.NotConfiguredMessage)
		}
		fmt.Fprintf(out, "id:    %s\n", cfg.ID)
		fmt.Fprintf(out, "key:   %s\n", maskKey(cfg.Key))
		fmt.Fprintf(out, "price: %s\n", presenter.Money(cfg.Price))
		return nil
	})
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	price := decimal.Zero
	if configPrice != "" {
		var err error
		price, err = decimal.NewFromString(configPrice)
		if err != nil {
			return fmt.Errorf("price must be a number: %w", err)
		}
	}
	cfg := domain.Config{
		ID:    domain.PlayerID(configID),
		Key:   strings.TrimSpace(configKey),
		Price: price,
	}

	return withService(cmd.Context(), func(ctx context.Context, svc *service.LedgerService) error {
		snap, err := svc.SaveConfig(ctx, cfg)
		if err != nil {
			return err
		}
		return presenter.WriteLedger(cmd.OutOrStdout(), &snap.Result, nil)
	})
}

func maskKey(key string) string {
	if key == "" {
		return "(none)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func init() {
	configSetCmd.Flags().Int64Var(&configID, "id", 0, "your player id")
	configSetCmd.Flags().StringVar(&configKey, "key", "", "your API key")
	configSetCmd.Flags().StringVar(&configPrice, "price", "0", "price per loss")
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
