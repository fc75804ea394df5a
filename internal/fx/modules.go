package fx

import (
	"context"
	"database/sql"
	"xp-ledger/internal/api"
	"xp-ledger/internal/config"
	"xp-ledger/internal/database"
	"xp-ledger/internal/logger"
	"xp-ledger/internal/repository"
	"xp-ledger/internal/server"
	"xp-ledger/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func closeDatabase(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
				return err
			}
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Invoke(logger.ApplyLevel),
	fx.Provide(database.New),
	fx.Invoke(closeDatabase),
	// stores
	fx.Provide(
		fx.Annotate(repository.NewConfigRepository, fx.As(new(service.ConfigStore))),
		fx.Annotate(repository.NewPaymentRepository, fx.As(new(service.PaymentStore))),
	),
	// api client
	fx.Provide(fx.Annotate(api.NewTornClient, fx.As(new(api.AttackFetcher)))),
	// svc
	fx.Provide(service.NewLedgerService),
	// server
	fx.Provide(server.NewLedgerServer),
)
