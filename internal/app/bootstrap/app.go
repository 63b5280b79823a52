package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/leadops-platform/internal/affiliates"
	"github.com/wolfman30/leadops-platform/internal/api/router"
	"github.com/wolfman30/leadops-platform/internal/appointments"
	"github.com/wolfman30/leadops-platform/internal/assignment"
	"github.com/wolfman30/leadops-platform/internal/closers"
	appconfig "github.com/wolfman30/leadops-platform/internal/config"
	"github.com/wolfman30/leadops-platform/internal/events"
	httpmiddleware "github.com/wolfman30/leadops-platform/internal/http/middleware"
	"github.com/wolfman30/leadops-platform/internal/notify"
	"github.com/wolfman30/leadops-platform/internal/observability/metrics"
	"github.com/wolfman30/leadops-platform/internal/tasks"
	"github.com/wolfman30/leadops-platform/pkg/logging"
)

// Deps are the already-connected infrastructure handles. Any of them may be nil.
type Deps struct {
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	AWS    *aws.Config
	Sender notify.EmailSender
}

// App is the wired API: the HTTP handler plus the background workers cmd/api runs.
type App struct {
	Handler     http.Handler
	Deliverer   *events.Deliverer
	RateLimiter *httpmiddleware.RateLimiter
	Registry    *prometheus.Registry
	sqlDB       *sql.DB
}

// Close releases resources owned by the App. Pools passed in through Deps are
// closed by their owner.
func (a *App) Close() {
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
}

// BuildApp wires repositories, services and handlers. Without a pool every
// store runs in memory and events are delivered inline.
func BuildApp(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	leadOpsMetrics := metrics.NewLeadOpsMetrics(reg)

	var (
		apptRepo      appointments.Repository
		closerRepo    closers.Repository
		affiliateRepo affiliates.Repository
		taskStore     tasks.Store
		sqlDB         *sql.DB
	)
	if deps.Pool != nil {
		apptRepo = appointments.NewPostgresRepository(deps.Pool)
		closerRepo = closers.NewPostgresRepository(deps.Pool)
		affiliateRepo = affiliates.NewPostgresRepository(deps.Pool)
		sqlDB = SQLDB(deps.Pool)
		taskStore = tasks.NewRepository(sqlDB)
		logger.Info("stores: postgres")
	} else {
		apptRepo = appointments.NewInMemoryRepository()
		closerRepo = closers.NewInMemoryRepository()
		affiliateRepo = affiliates.NewInMemoryRepository()
		taskStore = tasks.NewInMemoryStore()
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	affiliateSvc := affiliates.NewService(affiliateRepo, logger)
	apptSvc := appointments.NewService(apptRepo, logger).
		WithAffiliateRates(affiliateSvc).
		WithMetrics(leadOpsMetrics)
	affiliateSvc.WithAppointments(apptSvc)
	if cache := appointments.NewRedisStatsCache(deps.Redis, cfg.StatsCacheTTL); cache != nil {
		apptSvc.WithStatsCache(cache)
	}
	closerSvc := closers.NewService(closerRepo, apptSvc, logger)

	sender := deps.Sender
	if sender == nil {
		sender = notify.NewStubEmailSender(logger)
	}
	notifier := notify.NewService(sender, closerSvc, cfg.EmailFromName, logger).WithStats(apptSvc)

	var (
		publisher events.Publisher
		deliverer *events.Deliverer
	)
	if deps.Pool != nil {
		outbox := events.NewOutboxStore(deps.Pool)
		notifier.WithProcessedStore(events.NewProcessedStore(deps.Pool))
		deliverer = events.NewDeliverer(outbox, notifier, logger).
			WithInterval(cfg.OutboxInterval).
			WithBatchSize(int32(cfg.OutboxBatchSize))
		publisher = outbox
	} else {
		publisher = events.NewInlinePublisher(notifier, logger)
	}
	apptSvc.WithPublisher(publisher)

	assignSvc := assignment.NewService(apptSvc, closerSvc, logger).
		WithPublisher(publisher).
		WithMetrics(leadOpsMetrics)
	if deps.Redis != nil {
		assignSvc.WithLock(assignment.NewRedisLock(deps.Redis, cfg.AutoAssignLock))
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if cfg.AuthJWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; admin and closer routes will reject every request")
	}

	handler := router.New(&router.Config{
		Logger:             logger,
		Appointments:       appointments.NewHandler(apptSvc, logger),
		Assignment:         assignment.NewHandler(assignSvc, logger),
		Closers:            closers.NewHandler(closerSvc, logger),
		Affiliates:         affiliates.NewHandler(affiliateSvc, logger),
		Tasks:              tasks.NewHandler(taskStore, logger),
		AuthSecret:         cfg.AuthJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		HealthCheck:        healthCheck(deps.Pool, deps.Redis),
	})

	return &App{
		Handler:     handler,
		Deliverer:   deliverer,
		RateLimiter: limiter,
		Registry:    reg,
		sqlDB:       sqlDB,
	}, nil
}

func healthCheck(pool *pgxpool.Pool, redisClient *redis.Client) func(ctx context.Context) error {
	if pool == nil && redisClient == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
