package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	// sqlite allows one writer; keep the pool small
	DBMaxOpenConns    = 4
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	APIMaxConnsPerHost     = 4
	APIReadTimeout         = 10 * time.Second
	APIWriteTimeout        = 10 * time.Second
	APIMaxIdleConnDuration = 1 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ConfigKey   = "config"
	PaymentsKey = "payments"
)

const (
	PaymentHistoryLimit = 20
	// a page load older than this downloads the log again
	PageRefreshTTL = 30 * time.Second
)
