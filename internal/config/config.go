package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xtding233/gacha-economy/internal/constants"
)

type Config struct {
	ServerPort  string
	GRPCPort    string
	DBPath      string
	RedisAddr   string // empty uses the in-process lock
	BannerDir   string
	CatalogPath string
	LogLevel    string

	PullLockTTL        time.Duration
	MaxPullsPerRequest int
	SharedPityByType   bool
	ConfigPollInterval time.Duration

	CertifySchedule string // cron spec; empty disables
	CertifyDraws    int

	SpendCap       decimal.Decimal // zero disables the spending-cap gate
	SpendCapWindow time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		DBPath:      getEnv("DB_PATH", "gacha.db"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		BannerDir:   getEnv("BANNER_DIR", "config"),
		CatalogPath: getEnv("CATALOG_PATH", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CertifySchedule: getEnv("CERTIFY_SCHEDULE", ""),
	}

	var err error
	if cfg.PullLockTTL, err = getDuration("PULL_LOCK_TTL", constants.PullLockTTL); err != nil {
		return nil, err
	}
	if cfg.ConfigPollInterval, err = getDuration("CONFIG_POLL_INTERVAL", constants.ConfigPollEvery); err != nil {
		return nil, err
	}
	if cfg.SpendCapWindow, err = getDuration("SPEND_CAP_WINDOW", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MaxPullsPerRequest, err = getInt("MAX_PULLS_PER_REQUEST", constants.DefaultMaxPullsPerRequest); err != nil {
		return nil, err
	}
	if cfg.CertifyDraws, err = getInt("CERTIFY_DRAWS", constants.CertifyDraws); err != nil {
		return nil, err
	}
	if cfg.SharedPityByType, err = strconv.ParseBool(getEnv("SHARED_PITY_BY_TYPE", "false")); err != nil {
		return nil, fmt.Errorf("SHARED_PITY_BY_TYPE: %w", err)
	}
	if cfg.SpendCap, err = decimal.NewFromString(getEnv("SPEND_CAP", "0")); err != nil {
		return nil, fmt.Errorf("SPEND_CAP: %w", err)
	}

	if cfg.MaxPullsPerRequest < 1 {
		return nil, fmt.Errorf("MAX_PULLS_PER_REQUEST must be >= 1")
	}
	if cfg.PullLockTTL <= 0 {
		return nil, fmt.Errorf("PULL_LOCK_TTL must be positive")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("grpc_port", cfg.GRPCPort).
		Str("banner_dir", cfg.BannerDir).
		Bool("redis_lock", cfg.RedisAddr != "").
		Bool("shared_pity_by_type", cfg.SharedPityByType).
		Int("max_pulls_per_request", cfg.MaxPullsPerRequest).
		Dur("pull_lock_ttl", cfg.PullLockTTL).
		Str("certify_schedule", cfg.CertifySchedule).
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

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
