package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/directory"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/server"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/password"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP API",
		Long: `Run the demo HTTP API: login, refresh, logout, logout-all, activation,
a gated /me endpoint, /healthz and Prometheus /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Bool("embedded-redis", false, "run an in-process Redis (data is lost on exit)")
	cmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	cmd.Flags().String("directory", "users.yaml", "path to the YAML user directory")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(ctx context.Context, cfg *appConfig) error {
	logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	users, err := directory.Load(cfg.Directory)
	if err != nil {
		return err
	}
	logger.Info("user directory loaded", zap.String("path", cfg.Directory), zap.Int("users", users.Len()))

	hasher, err := password.New(password.DefaultParams())
	if err != nil {
		return err
	}
	dummyHash, err := hasher.Hash("gosession-unknown-user")
	if err != nil {
		return fmt.Errorf("prepare dummy hash: %w", err)
	}

	rdb, closeRedis, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	engine, err := goSession.New().
		WithConfig(cfg.engineConfig()).
		WithRedis(rdb).
		WithLogger(logger).
		WithAuditSink(goSession.NewZapSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	exporter := prometheus.NewPrometheusExporter(engine)
	exporter.Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gin.SetMode(gin.ReleaseMode)
	router := server.New(server.Options{
		Sessions:  engine,
		Users:     users,
		Passwords: hasher,
		Throttle:  rate.New(rdb, cfg.throttleConfig()),
		Metrics:   exporter.Handler(),
		Cookies: middleware.CookieOptions{
			Secure: cfg.HTTP.SecureCookies,
			Domain: cfg.HTTP.CookieDomain,
		},
		Logger:    logger,
		DummyHash: dummyHash,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
