package config

import (
	"context"
	"time"

	"github.com/akeren/lasting-loves-waitlist/config/router"
	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/akeren/lasting-loves-waitlist/internal/models"
	"github.com/akeren/lasting-loves-waitlist/pkg/constants"
	"github.com/akeren/lasting-loves-waitlist/pkg/events"
	"github.com/akeren/lasting-loves-waitlist/pkg/mailer"
	"github.com/akeren/lasting-loves-waitlist/pkg/tasks"
	"github.com/akeren/lasting-loves-waitlist/pkg/utils"
	"gorm.io/gorm"
)

// ApplicationConfig holds the process-wide handles built once at startup.
type ApplicationConfig struct {
	DB              *gorm.DB
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Config          *AppConfig
	Mailer          mailer.Sender
	Events          events.Publisher
	Tasks           *tasks.Runner
	TracingShutdown func(context.Context) error

	shutdownHooks []func(context.Context) error
}

type AppConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	JoinRateLimit      int
	RequestTimeout     time.Duration
	TaskWorkers        int
	TaskQueueSize      int
	TaskTimeout        time.Duration
	SizeReportSchedule string
	ShutdownTimeout    time.Duration
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		RateLimitRequests:  utils.GetEnvNonNegativeInt("RATE_LIMIT_REQUESTS", constants.DefaultRateLimitRequests),
		RateLimitWindow:    utils.GetEnvDuration("RATE_LIMIT_WINDOW", constants.DefaultRateLimitWindow()),
		JoinRateLimit:      utils.GetEnvNonNegativeInt("JOIN_RATE_LIMIT", 0),
		RequestTimeout:     utils.GetEnvDuration("REQUEST_TIMEOUT", router.DefaultRequestTimeout),
		TaskWorkers:        utils.GetEnvPositiveInt("TASK_WORKERS", constants.DefaultTaskWorkers),
		TaskQueueSize:      utils.GetEnvPositiveInt("TASK_QUEUE_SIZE", constants.DefaultTaskQueueSize),
		TaskTimeout:        utils.GetEnvDuration("TASK_TIMEOUT", constants.DefaultTaskTimeout),
		SizeReportSchedule: utils.GetEnvTrimmedOrDefault("WAITLIST_SIZE_REPORT_SCHEDULE", constants.DefaultSizeReportSchedule),
		ShutdownTimeout:    utils.GetEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// OnShutdown registers fn to run during Cleanup. Hooks run in reverse
// registration order, before the task runner drains.
func (ac *ApplicationConfig) OnShutdown(fn func(context.Context) error) {
	ac.shutdownHooks = append(ac.shutdownHooks, fn)
}

func (ac *ApplicationConfig) Cleanup() {
	timeout := 30 * time.Second
	if ac.Config != nil && ac.Config.ShutdownTimeout > 0 {
		timeout = ac.Config.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(ac.shutdownHooks) - 1; i >= 0; i-- {
		if err := ac.shutdownHooks[i](ctx); err != nil {
			ac.Logger.Error("Shutdown hook failed", "error", err)
		}
	}
	ac.shutdownHooks = nil

	if ac.Tasks != nil {
		if err := ac.Tasks.Shutdown(ctx); err != nil {
			ac.Logger.Error("Background tasks did not drain", "error", err)
		}
	}

	if ac.Events != nil {
		if err := ac.Events.Close(); err != nil {
			ac.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	if ac.TracingShutdown != nil {
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		_ = CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	tracingShutdown, err := SetupTracing(context.Background(), logger)
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(context.Background(), logger, NewDBConfig())
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			return nil, err
		}
	}

	appConfig := NewAppConfig()
	cache := NewCacheConfig().NewCacheOrNil(logger)

	routerService := router.CreateRouterService(logger, cache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	runner := tasks.NewRunner(logger, tasks.Config{
		Workers:    appConfig.TaskWorkers,
		QueueSize:  appConfig.TaskQueueSize,
		Timeout:    appConfig.TaskTimeout,
		Registerer: routerService.MetricsRegistry(),
	})

	logger.Info("Application configuration loaded successfully")

	return &ApplicationConfig{
		DB:              db,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Config:          appConfig,
		Mailer:          NewMailSender(logger),
		Events:          NewEventPublisher(logger),
		Tasks:           runner,
		TracingShutdown: tracingShutdown,
	}, nil
}
