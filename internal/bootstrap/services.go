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

	"github.com/jayClean/product-importer/config"
	"github.com/jayClean/product-importer/internal/adapters/importrunner"
	"github.com/jayClean/product-importer/internal/adapters/reaper"
	"github.com/jayClean/product-importer/internal/adapters/webhookrunner"
	"github.com/jayClean/product-importer/internal/data"
	"github.com/jayClean/product-importer/internal/memoryx"
	"github.com/jayClean/product-importer/internal/observability/statsd"
	"github.com/jayClean/product-importer/internal/service"
	"github.com/jayClean/product-importer/internal/storage"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *service.JobService
	Imports       *service.ImportService
	Products      *service.ProductService
	Webhooks      *service.WebhookService
	Progress      *service.ProgressService
	Cache         *data.RedisCacheRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB          *sql.DB
	Redis       redis.UniversalClient
	JobRepo     *data.JobRepo
	ProductRepo *data.ProductRepo
	WebhookRepo *data.WebhookRepo
	CacheRepo   *data.RedisCacheRepo
}

// buildObservability configures the metrics adapter.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "product_importer",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, logger *slog.Logger) *serviceRepositories {
	repos := &serviceRepositories{
		DB:          db,
		Redis:       redisClient,
		JobRepo:     data.NewJobRepo(db, data.RepoConfig{}),
		ProductRepo: data.NewProductRepo(db, logger),
		WebhookRepo: data.NewWebhookRepo(db),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

// DomainServicesOptions groups inputs for buildDomainServices.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) (ServiceContainer, error) {
	if opts == nil {
		return ServiceContainer{}, errors.New("domain service options are required")
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:         opts.Repos.JobRepo,
		DefaultLease: 30 * time.Second,
		Logger:       svcLogger,
	})

	var progressService *service.ProgressService
	if opts.Repos.CacheRepo != nil {
		var err error
		progressService, err = service.NewProgressService(service.ProgressServiceOptions{
			Cache:  opts.Repos.CacheRepo,
			TTL:    appCfg.Cache.ProgressTTL,
			Logger: svcLogger,
		})
		if err != nil {
			return ServiceContainer{}, fmt.Errorf("progress service: %w", err)
		}
	}

	webhookService, err := service.NewWebhookService(service.WebhookServiceOptions{
		Repo:       opts.Repos.WebhookRepo,
		Jobs:       jobService,
		Timeout:    appCfg.WebhookRunner.DeliveryTimeout,
		MaxRetries: appCfg.WebhookRunner.MaxRetries,
		Logger:     svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("webhook service: %w", err)
	}

	productService, err := service.NewProductService(service.ProductServiceOptions{
		Repo:     opts.Repos.ProductRepo,
		Webhooks: webhookService,
		Logger:   svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("product service: %w", err)
	}

	uploads, err := storage.NewUploadStore(storage.UploadStoreOptions{
		Dir:    appCfg.HTTP.UploadDir,
		Cache:  opts.Repos.CacheRepo,
		TTL:    appCfg.Cache.UploadTTL,
		Logger: svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("upload store: %w", err)
	}

	importService, err := service.NewImportService(service.ImportServiceOptions{
		Jobs:     jobService,
		Products: opts.Repos.ProductRepo,
		Uploads:  uploads,
		Progress: progressService,
		Webhooks: webhookService,
		Monitor: memoryx.New(memoryx.Options{
			BaselineBytes:  appCfg.Memory.BaselineBytes,
			HardLimitBytes: appCfg.Memory.HardLimitBytes,
		}),
		Logger: svcLogger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("import service: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobService,
		Imports:       importService,
		Products:      productService,
		Webhooks:      webhookService,
		Progress:      progressService,
		Cache:         opts.Repos.CacheRepo,
		Observability: opts.Observability,
	}, nil
}

// NewServices wires observability adapters, repositories, and domain services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, logger)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	serverCfg := &HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		DB:       deps.cfg.DB,
		Logger:   deps.logger,
	}
	if deps.cfg.Services.Cache != nil {
		serverCfg.Cache = deps.cfg.Services.Cache
	}
	return StartHTTPServer(serverCfg)
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(
					ctx,
					"dropping background service error",
					"service",
					descriptor.name,
					"error",
					errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newImporterBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeImporter,
		name: "importer",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			appCfg := deps.cfg.Config
			if appCfg == nil {
				appCfg = &config.AppConfig{}
			}
			opts := importrunner.RunnerOptions{
				DB:                deps.cfg.DB,
				Logger:            deps.logger,
				Lease:             appCfg.Importer.JobLease,
				Concurrency:       appCfg.Importer.Concurrency,
				UploadDir:         appCfg.HTTP.UploadDir,
				Memory:            appCfg.Memory,
				WebhookMaxRetries: appCfg.WebhookRunner.MaxRetries,
				Metrics:           deps.cfg.Services.Observability.MetricsSink,
			}
			if deps.cfg.Services.Cache != nil {
				opts.Cache = deps.cfg.Services.Cache
			}
			runner, err := importrunner.NewRunner(opts)
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newWebhookRunnerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWebhookRunner,
		name: "webhook runner",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var cfg config.WebhookRunnerConfig
			if deps.cfg.Config != nil {
				cfg = deps.cfg.Config.WebhookRunner
			}
			runner, err := webhookrunner.NewRunner(webhookrunner.RunnerOptions{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  cfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			runner, err := reaper.NewRunner(reaper.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  reaperCfg,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newImporterBackgroundService(deps),
		newWebhookRunnerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		jobService:  cfg.Services.Jobs,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeImporter,
		config.ServiceModeWebhookRunner,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	jobService  *service.JobService
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     cfg.httpServer,
			JobService: cfg.jobService,
			Logger:     cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
