package logger

import (
	"io"
	"os"
	"xp-ledger/internal/config"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New logs to stderr; stdout belongs to the rendered ledger. Filtering uses
// the global level so that ApplyLevel can tighten or relax it after .env has
// been read.
func New() zerolog.Logger {
	zerolog.SetGlobalLevel(levelFromEnv())
	return SetLevel(zerolog.TraceLevel)
}

func SetLevel(level zerolog.Level) zerolog.Logger {
	return NewWithWriter(os.Stderr, level)
}

func NewWithWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger.Level(level)
}

// ApplyLevel switches the global level to cfg.LogLevel. An unknown level
// keeps the current one.
func ApplyLevel(cfg *config.Config, logger zerolog.Logger) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level, keeping current")
		return
	}
	zerolog.SetGlobalLevel(level)
	logger.Debug().Str("log_level", level.String()).Msg("log level applied")
}

// LOG_LEVEL is read from the process env for the bootstrap logger, before
// config.Load has read .env.
func levelFromEnv() zerolog.Level {
	level, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func parseLevel(raw string) (zerolog.Level, error) {
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(raw)
}

var Module = fx.Provide(New)
