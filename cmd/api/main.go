package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/authz"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/config"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/httpapi"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/store/pg"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		zap.NewExample().Fatal("load config", zap.Error(err))
	}

	logger := obs.InitLogger(obs.LogConfig{
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
		Service: "plantilla-api",
		Version: version,
	})
	defer func() { _ = logger.Sync() }()
	obs.Init()
	obs.InitBuildInfo(obs.BuildInfo{
		Service: "plantilla-api",
		Version: version,
		Commit:  commit,
		Env:     cfg.AppEnv,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := auth.NewTokens(cfg.AccessTokenSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithTokenTTL(cfg.TokenTTL),
	)
	if err != nil {
		return err
	}

	opts := []auth.ServiceOption{auth.WithLogger(logger.Named("auth"))}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, auth.WithAttemptTracker(
			auth.NewRedisAttempts(rdb, cfg.LoginMaxAttempts, cfg.LoginLockWindow)))
		logger.Info("login lockout enabled", zap.String("redis", cfg.RedisAddr))
	}
	svc, err := auth.NewService(store, tokens, opts...)
	if err != nil {
		return err
	}

	probe := httpapi.ReadyProbe{DB: store}
	api := httpapi.New(svc, probe, httpapi.Settings{
		Version:        version,
		Production:     cfg.IsProduction(),
		CookieSecure:   cfg.CookieSecure,
		CORSOrigins:    cfg.CORSOrigins,
		RatePerSec:     cfg.RateLimitRPS,
		RateBurst:      cfg.RateLimitBurst,
		LoginPerMinute: cfg.LoginPerMinute,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	},
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithEvaluator(authz.New(authz.WithLogger(logger.Named("authz")))),
	)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	health := httpapi.NewGRPCServer(probe, 0, logger.Named("grpc"))
	health.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		health.Watch(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
