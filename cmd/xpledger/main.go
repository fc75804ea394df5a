package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"xp-ledger/internal/constants"
	fxmodules "xp-ledger/internal/fx"
	"xp-ledger/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:   "xpledger",
	Short: "Track what attackers owe you for losing to you",
	Long: `xpledger downloads your attack log, counts the fights where someone
attacked you and lost, and keeps a ledger of what each attacker owes at your
price per loss and what they have paid.

Run "xpledger config set" once, then "xpledger" to see the ledger.`,
	SilenceUsage: true,
	RunE:         runShow,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(showCmd, configCmd, payCmd, paymentsCmd, serveCmd)
}

// withService starts the app graph, hands the ledger service to fn and
// stops the graph again.
func withService(ctx context.Context, fn func(ctx context.Context, svc *service.LedgerService) error) error {
	var svc *service.LedgerService
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Populate(&svc),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, svc)
}
