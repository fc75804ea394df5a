package repository

import (
	"context"
	"database/sql"
	"xp-ledger/internal/constants"
	"xp-ledger/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ConfigRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewConfigRepository(sqlDB *sql.DB, logger zerolog.Logger) *ConfigRepository {
	return &ConfigRepository{db: sqlDB, logger: logger}
}

// Load returns the saved config, or the zero config if none was saved.
func (r *ConfigRepository) Load(ctx context.Context) (domain.Config, error) {
	cfg := domain.Config{Price: decimal.Zero}
	found, err := getBlob(ctx, r.db, constants.ConfigKey, &cfg)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load config")
		return domain.Config{}, err
	}
	if !found {
		r.logger.Debug().Msg("no config saved yet")
	}
	return cfg, nil
}

// Save replaces the stored config as a whole.
func (r *ConfigRepository) Save(ctx context.Context, cfg domain.Config) error {
	if err := putBlob(ctx, r.db, constants.ConfigKey, cfg); err != nil {
		r.logger.Error().Err(err).Msg("failed to save config")
		return err
	}
	r.logger.Debug().Str("id", cfg.ID.String()).Str("price", cfg.Price.String()).Msg("config saved")
	return nil
}
