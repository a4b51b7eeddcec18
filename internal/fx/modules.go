package fx

import (
	"database/sql"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/xtding233/gacha-economy/internal/certify"
	"github.com/xtding233/gacha-economy/internal/compliance"
	"github.com/xtding233/gacha-economy/internal/config"
	"github.com/xtding233/gacha-economy/internal/gacha"
	"github.com/xtding233/gacha-economy/internal/game"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/lock"
	"github.com/xtding233/gacha-economy/internal/logger"
	"github.com/xtding233/gacha-economy/internal/pricing"
	"github.com/xtding233/gacha-economy/internal/pull"
	"github.com/xtding233/gacha-economy/internal/server"
	"github.com/xtding233/gacha-economy/internal/store"
)

func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logger.SetLevel(logger.New(), cfg.LogLevel)
}

func ProvideConfig() (*config.Config, error) {
	return config.Load(logger.New())
}

func ProvideStore(db *sql.DB, logger zerolog.Logger) *store.SQLite {
	return store.NewSQLite(db, logger)
}

func ProvideLedger(s *store.SQLite, logger zerolog.Logger) *ledger.Ledger {
	return ledger.New(s, logger)
}

// ProvideLocker uses Redis when REDIS_ADDR is set, so several instances share
// pull locks; otherwise locks are process-local.
func ProvideLocker(cfg *config.Config, logger zerolog.Logger) lock.Locker {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("using in-process pull lock")
		return lock.NewMemory()
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("using redis pull lock")
	return lock.NewRedis(redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}}))
}

func ProvideRegistry(cfg *config.Config) *game.Registry {
	return game.NewRegistry(game.NewLoader(cfg.BannerDir))
}

func ProvideCompliance(cfg *config.Config, l *ledger.Ledger) pull.ComplianceGate {
	if cfg.SpendCap.IsPositive() {
		return compliance.NewSpendingCap(l, cfg.SpendCap, cfg.SpendCapWindow)
	}
	return compliance.AllowAll{}
}

func ProvidePullService(
	cfg *config.Config,
	registry *game.Registry,
	l *ledger.Ledger,
	locker lock.Locker,
	s *store.SQLite,
	gate pull.ComplianceGate,
	logger zerolog.Logger,
) *pull.Service {
	policy := pull.PerBanner
	if cfg.SharedPityByType {
		policy = pull.SharedByType
	}
	return pull.NewService(pull.Deps{
		Banners:    registry,
		Ledger:     l,
		Locker:     locker,
		Store:      s,
		Inventory:  s,
		Compliance: gate,
		RNG:        gacha.DefaultRNG(),
		Logger:     logger,
	}, pull.Options{
		MaxPullsPerRequest: cfg.MaxPullsPerRequest,
		LockTTL:            cfg.PullLockTTL,
		ScopePolicy:        policy,
	})
}

func ProvideCatalog(cfg *config.Config) (pricing.Catalog, error) {
	return pricing.LoadCatalog(cfg.CatalogPath)
}

func ProvideCertifier(cfg *config.Config, svc *pull.Service, registry *game.Registry, logger zerolog.Logger) (*certify.Certifier, error) {
	return certify.New(svc, registry, cfg.CertifySchedule, cfg.CertifyDraws, logger)
}

func ProvideServer(
	svc *pull.Service,
	l *ledger.Ledger,
	registry *game.Registry,
	catalog pricing.Catalog,
	certifier *certify.Certifier,
	db *sql.DB,
	logger zerolog.Logger,
) *server.Server {
	return server.NewServer(server.Deps{
		Pulls:   svc,
		Ledger:  l,
		Banners: registry,
		Catalog: catalog,
		Payer:   ledger.SandboxPayer{},
		Certs:   certifier,
		DB:      db,
		Logger:  logger,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLogger),
	fx.Provide(store.Open),
	// stores
	fx.Provide(ProvideStore),
	fx.Provide(ProvideLedger),
	fx.Provide(ProvideLocker),
	// banners and pricing
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideCatalog),
	// svc
	fx.Provide(ProvideCompliance),
	fx.Provide(ProvidePullService),
	fx.Provide(ProvideCertifier),
	// server
	fx.Provide(ProvideServer),
)
