package constants

import "time"

const (
	DefaultMaxPullsPerRequest = 10
	PullLockTTL               = 30 * time.Second
	PullLockPrefix            = "gacha:pull-lock:"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
	MaxSimulationDraws  = 5_000_000
	CertifyDraws        = 100_000
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	ConfigPollEvery = 5 * time.Second
)

const (
	DBMaxOpenConns    = 1 // SQLite allows a single writer
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
