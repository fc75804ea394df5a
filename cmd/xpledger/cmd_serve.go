package main

import (
	"context"
	"fmt"
	"net/http"
	"xp-ledger/internal/config"
	"xp-ledger/internal/constants"
	fxmodules "xp-ledger/internal/fx"
	"xp-ledger/internal/middleware"
	"xp-ledger/internal/server"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger as a local web page",
	Long: `Serve the ledger page on SERVER_PORT (default 8080). The page has the
config inputs, the ledger table with Mark Paid, and the summary. Loading the
page downloads the log again once the shown ledger is older than 30s.

The same actions are served as connect procedures with JSON bodies under
/xpledger.v1.LedgerService/ (GetLedger, Refresh, SaveConfig, MarkPaid).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fx.New(
			fxmodules.Module,
			fx.NopLogger,
			fx.Invoke(runServer),
		).Run()
		return nil
	},
}

func runServer(
	lc fx.Lifecycle,
	ledgerServer *server.LedgerServer,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:" + cfg.ServerPort, "http://127.0.0.1:" + cfg.ServerPort},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	requestIDMiddleware := middleware.RequestID(logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%s", cfg.ServerPort),
		Handler: requestIDMiddleware(c.Handler(ledgerServer.Routes())),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
