package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/gacha-economy/internal/certify"
	"github.com/xtding233/gacha-economy/internal/config"
	"github.com/xtding233/gacha-economy/internal/constants"
	fxmodules "github.com/xtding233/gacha-economy/internal/fx"
	"github.com/xtding233/gacha-economy/internal/game"
	"github.com/xtding233/gacha-economy/internal/server"
)

// GachaService is the name reported by the gRPC health service.
const GachaService = "gacha.v1.Gacha"

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
		fx.Invoke(runGRPCHealth),
		fx.Invoke(runBannerWatcher),
		fx.Invoke(runCertifier),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: constants.DatabaseTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", httpSrv.Addr).Msg("server starting")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			err := httpSrv.Shutdown(shutdownCtx)
			if cerr := db.Close(); cerr != nil {
				logger.Warn().Err(cerr).Msg("error closing database connection")
			}
			if err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

func runGRPCHealth(lc fx.Lifecycle, cfg *config.Config, db *sql.DB, logger zerolog.Logger) {
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			status := healthpb.HealthCheckResponse_SERVING
			if err := db.PingContext(ctx); err != nil {
				logger.Warn().Err(err).Msg("database unreachable at startup")
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			hs.SetServingStatus("", status)
			hs.SetServingStatus(GachaService, status)
			go func() {
				logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health server starting")
				if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Error().Err(err).Msg("grpc health server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hs.Shutdown()
			grpcSrv.GracefulStop()
			return nil
		},
	})
}

// runBannerWatcher drops cached banner configs whenever a YAML file under the
// banner directory changes.
func runBannerWatcher(lc fx.Lifecycle, cfg *config.Config, registry *game.Registry, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	watcher := game.NewFileWatcher(cfg.BannerDir, cfg.ConfigPollInterval, func(path string) {
		registry.Invalidate()
		logger.Info().Str("path", path).Msg("banner config changed, cache invalidated")
	})
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				watcher.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func runCertifier(lc fx.Lifecycle, certifier *certify.Certifier) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return certifier.Start() },
		OnStop:  certifier.Stop,
	})
}
