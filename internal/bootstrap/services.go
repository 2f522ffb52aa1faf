package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/config"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/adapters/engine"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/adapters/sysstat"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/data"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/statsd"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/service"
)

// Container holds the wired service graph.
type Container struct {
	Store     *data.FileSnapshotStore
	Engine    *engine.Client
	Admission *service.AdmissionService
	Queue     *service.QueueService
	Sweeper   *service.SweeperService
	Metrics   *statsd.Client
}

// BuildServices constructs every service from configuration. Nothing is
// started here; Run owns lifecycle.
func BuildServices(cfg *config.AppConfig, logger *slog.Logger) (*Container, error) {
	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.StatsDEnabled,
		Address: cfg.Observability.StatsDAddress,
		Prefix:  cfg.Observability.StatsDPrefix,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("statsd client: %w", err)
	}

	store, err := data.NewFileSnapshotStore(data.FileSnapshotStoreOptions{
		Path:   cfg.Queue.SnapshotPath,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	stats, err := sysstat.NewSource()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	admission, err := service.NewAdmissionService(service.AdmissionServiceOptions{
		Source:       stats,
		CPUThreshold: cfg.Admission.CPUThreshold,
		Cores:        cfg.Admission.Cores,
		PollInterval: cfg.Admission.PollInterval,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("admission service: %w", err)
	}

	eng, err := engine.NewClient(engine.ClientOptions{
		BaseURL: cfg.Engine.URL,
		Timeout: cfg.Engine.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("engine client: %w", err)
	}

	queue, err := service.NewQueueService(service.QueueServiceOptions{
		Store:       store,
		Executor:    eng,
		Admission:   admission,
		MaxAttempts: cfg.Queue.MaxAttempts,
		RetryDelay:  cfg.Queue.RetryDelay,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("queue service: %w", err)
	}

	sweeper, err := service.NewSweeperService(service.SweeperServiceOptions{
		Queue:    queue,
		Interval: cfg.Queue.SweepInterval,
		TTL:      cfg.Queue.ResultTTL,
		Logger:   logger,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper service: %w", err)
	}

	return &Container{
		Store:     store,
		Engine:    eng,
		Admission: admission,
		Queue:     queue,
		Sweeper:   sweeper,
		Metrics:   metrics,
	}, nil
}
