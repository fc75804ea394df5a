package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const DefaultAPIBaseURL = "https://api.torn.com"

// Config holds process settings. The ledger owner's id, key and price are
// user data and live in the store, not here.
type Config struct {
	DBPath     string
	APIBaseURL string
	ServerPort string
	LogLevel   string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "xpledger.db"),
		APIBaseURL: getEnv("API_BASE_URL", DefaultAPIBaseURL),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Str("api_base_url", cfg.APIBaseURL).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
