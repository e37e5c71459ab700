package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/adapters/batchrunner"
	"github.com/punchd-io/punchd/internal/adapters/cronsched"
	"github.com/punchd-io/punchd/internal/adapters/generator"
	redisadapter "github.com/punchd-io/punchd/internal/adapters/redis"
	"github.com/punchd-io/punchd/internal/adapters/solver"
	"github.com/punchd-io/punchd/internal/core"
	"github.com/punchd-io/punchd/internal/data"
	"github.com/punchd-io/punchd/internal/domain/trigger"
	"github.com/punchd-io/punchd/internal/observability/statsd"
	"github.com/punchd-io/punchd/internal/remote"
	"github.com/punchd-io/punchd/internal/service"
	"github.com/punchd-io/punchd/internal/service/pushnotifier"
)

// gracefulStopTimeout bounds how long background services get to drain
// after a shutdown signal.
const gracefulStopTimeout = 15 * time.Second

// Container holds every wired component of a punchd process. Which
// components actually run is decided by the enabled service modes.
type Container struct {
	Config config.AppConfig
	Logger *slog.Logger

	DB      *sql.DB
	Redis   redis.UniversalClient
	Metrics *statsd.Client

	Accounts *data.AccountRepo
	Batches  *data.BatchRepo
	Audit    *data.AuditRepo

	Orchestrator *service.Orchestrator
	Queue        *service.BatchQueue
	Scheduler    *service.Scheduler
	Registry     *cronsched.Registry
	Reaper       *service.Reaper
	BatchRunner  *batchrunner.Runner
}

// BuildContainer connects storage and wires the full service graph.
func BuildContainer(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*Container, error) {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	db, err := ConnectDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	redisClient, err := ConnectRedis(dbCfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	metricsClient, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  "punchd",
		Logger:  logger,
	})
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("connect statsd: %w", err)
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Redis:   redisClient,
		Metrics: metricsClient,
	}
	if err := c.wire(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) wire() error {
	cfg := c.Config
	logger := c.Logger

	encryptor := CreateEncryptor(cfg.CredentialsEncryptionKey, logger)
	c.Accounts = data.NewAccountRepo(c.DB, data.AccountRepoOptions{
		Encryptor: encryptor,
		Logger:    logger,
	})
	c.Batches = data.NewBatchRepo(c.DB, data.BatchRepoOptions{Logger: logger})
	c.Audit = data.NewAuditRepo(c.DB, nil)

	sharedHTTP := &http.Client{Timeout: cfg.Remote.Timeout}

	var captchaSolver core.CaptchaSolver
	if cfg.Remote.SolverURL != "" {
		client, err := solver.NewClient(solver.Config{URL: cfg.Remote.SolverURL})
		if err != nil {
			return fmt.Errorf("create captcha solver: %w", err)
		}
		captchaSolver = client
	} else {
		logger.Warn("no captcha solver configured, logins that hit a captcha will fail")
	}

	var contentGenerator core.ContentGenerator
	if cfg.Remote.GeneratorURL != "" {
		client, err := generator.NewClient(generator.Config{
			URL:   cfg.Remote.GeneratorURL,
			Token: cfg.Remote.GeneratorToken,
		})
		if err != nil {
			return fmt.Errorf("create content generator: %w", err)
		}
		contentGenerator = client
	}

	uploader := service.NewUploader(service.UploaderOptions{Config: cfg.Remote, Logger: logger})
	holidays := service.NewHolidayCalendar(service.HolidayOptions{
		Config: cfg.Remote,
		Logger: logger,
		Cache:  redisadapter.NewHolidayCache(c.Redis),
	})
	tokenCache := redisadapter.NewTokenCache(c.Redis)
	pusher := pushnotifier.NewService(pushnotifier.Options{
		Config: cfg.Observability.Notifications,
		Logger: logger,
	})

	remoteFactory := func(creds remote.Credentials) service.RemoteAPI {
		return remote.NewClient(cfg.Remote, creds, remote.ClientOptions{
			HTTPClient: sharedHTTP,
			Solver:     captchaSolver,
			Logger:     logger,
		})
	}

	c.Orchestrator = service.NewOrchestrator(service.OrchestratorOptions{
		Deps: service.OrchestratorDeps{
			Accounts:   c.Accounts,
			Audit:      c.Audit,
			TokenCache: tokenCache,
			Generator:  contentGenerator,
			Uploader:   uploader,
			Holidays:   holidays,
			Pusher:     pusher,
			Sink:       c.Metrics,
		},
		Remote: remoteFactory,
		Logger: logger,
	})

	c.Queue = service.NewBatchQueue(service.BatchOptions{
		Deps: service.BatchDeps{
			Batches:      c.Batches,
			Accounts:     c.Accounts,
			Audit:        c.Audit,
			Orchestrator: c.Orchestrator,
			Sink:         c.Metrics,
		},
		Config: cfg.Batch,
		Logger: logger,
	})

	// The registry fires into the scheduler service; the scheduler service
	// registers triggers with the registry. Break the cycle with a closure
	// over the container: the cron clock does not start until Run.
	registry, err := cronsched.NewRegistry(cronsched.RegistryOptions{
		Config: cfg.Scheduler,
		Fire: func(ctx context.Context, accountID string, spec trigger.Spec) {
			c.Scheduler.HandleFire(ctx, accountID, spec)
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create trigger registry: %w", err)
	}
	c.Registry = registry

	c.Scheduler = service.NewScheduler(service.SchedulerOptions{
		Deps: service.SchedulerDeps{
			Accounts:     c.Accounts,
			Audit:        c.Audit,
			Registry:     registry,
			Orchestrator: c.Orchestrator,
		},
		Config: cfg.Scheduler,
		Logger: logger,
	})

	c.Reaper = service.NewReaper(service.ReaperOptions{
		Deps: service.ReaperDeps{
			Batches: c.Batches,
			Audit:   c.Audit,
			Sink:    c.Metrics,
		},
		Config: cfg.Reaper,
		Logger: logger,
	})

	runner, err := batchrunner.NewRunner(batchrunner.RunnerOptions{
		Queue:  c.Queue,
		Config: cfg.Batch,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create batch runner: %w", err)
	}
	c.BatchRunner = runner
	return nil
}

// Close releases storage connections. Safe to call on a partially built
// container.
func (c *Container) Close() {
	if c.Metrics != nil {
		if err := c.Metrics.Close(); err != nil {
			c.Logger.Warn("close statsd client", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis client", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close database", "error", err)
		}
	}
}

// backgroundService is one long-running component selected by service mode.
type backgroundService struct {
	name string
	run  func(ctx context.Context) error
}

func (c *Container) backgroundServices() []backgroundService {
	var services []backgroundService
	if c.Config.IsSchedulerEnabled() {
		services = append(services, backgroundService{name: "scheduler", run: c.runScheduler})
	}
	if c.Config.IsBatchRunnerEnabled() {
		services = append(services, backgroundService{name: "batch-runner", run: c.BatchRunner.Run})
	}
	if c.Config.IsReaperEnabled() {
		services = append(services, backgroundService{name: "reaper", run: c.Reaper.Run})
	}
	return services
}

// runScheduler rebuilds the trigger registry from the database, then runs
// the cron clock alongside a periodic reconcile loop.
func (c *Container) runScheduler(ctx context.Context) error {
	if err := c.Scheduler.RebuildAll(ctx); err != nil {
		return fmt.Errorf("initial trigger rebuild: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Registry.Run(gctx) })
	g.Go(func() error { return c.rebuildLoop(gctx) })
	return g.Wait()
}

func (c *Container) rebuildLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.Config.Scheduler.RebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := c.Scheduler.RebuildAll(ctx); err != nil && ctx.Err() == nil {
				c.Logger.ErrorContext(ctx, "trigger rebuild failed", "error", err)
			}
		}
	}
}

// RunServicesWithShutdown runs the enabled background services until one
// fails or a termination signal arrives, then drains them with a bounded
// grace period.
func RunServicesWithShutdown(ctx context.Context, c *Container) error {
	services := c.backgroundServices()
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, svc := range services {
		c.Logger.Info("service starting", "service", svc.name)
		g.Go(func() error {
			if err := svc.run(gctx); err != nil {
				return fmt.Errorf("%s: %w", svc.name, err)
			}
			c.Logger.Info("service stopped", "service", svc.name)
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.Logger.Info("shutdown signal received")
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(gracefulStopTimeout):
			return errors.New("graceful shutdown timed out")
		}
	}
}
