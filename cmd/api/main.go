package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/leadops-platform/cmd/mainconfig"
	"github.com/wolfman30/leadops-platform/internal/app/bootstrap"
	appconfig "github.com/wolfman30/leadops-platform/internal/config"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

func main() {
	mainconfig.LoadDotEnv()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadops API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	var awsCfg *aws.Config
	if cfg.EmailProvider == "ses" {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
		} else {
			awsCfg = &loaded
		}
	}
	sender, provider := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	logger.Info("email provider selected", "provider", provider)

	app, err := bootstrap.BuildApp(ctx, cfg, bootstrap.Deps{
		Pool:   pool,
		Redis:  redisClient,
		AWS:    awsCfg,
		Sender: sender,
	}, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serve(ctx, srv, app, logger)
}

// serve runs the HTTP server and background workers until ctx is cancelled,
// then shuts the server down gracefully.
func serve(ctx context.Context, srv *http.Server, app *bootstrap.App, logger *logging.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.Deliverer != nil {
		g.Go(func() error {
			app.Deliverer.Start(gctx)
			return nil
		})
	}
	if app.RateLimiter != nil {
		g.Go(func() error {
			app.RateLimiter.Run(gctx, time.Minute, 10*time.Minute)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
