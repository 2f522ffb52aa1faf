package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/statsd"
)

const (
	defaultSweepInterval = time.Minute
	defaultResultTTL     = 15 * time.Minute
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Queue    *QueueService // Required: queue owning the result cache
	Interval time.Duration // Optional: sweep cadence; defaults to 60s
	TTL      time.Duration // Optional: result retention; defaults to 15m
	Logger   *slog.Logger  // Optional: structured logger
	Metrics  statsd.Sink   // Optional: metrics sink
}

// SweeperService periodically evicts expired results so uncollected outcomes
// never grow the snapshot without bound.
type SweeperService struct {
	queue    *QueueService
	interval time.Duration
	ttl      time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Queue == nil {
		return nil, errors.New("QueueService is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SweeperService{
		queue:    opts.Queue,
		interval: interval,
		ttl:      ttl,
		logger:   logger.With("component", "sweeper"),
		metrics:  opts.Metrics,
	}, nil
}

// Run sweeps at the configured interval until the context is cancelled.
// Returns nil on graceful shutdown.
func (s *SweeperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting result sweeper", "interval", s.interval, "ttl", s.ttl)

	// Jitter the first sweep so multiple restarts don't align their IO.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweeperService) sweep(ctx context.Context) {
	evicted, err := s.queue.SweepExpired(ctx, s.ttl)
	if err != nil {
		s.logger.ErrorContext(ctx, "result sweep failed", "error", err)
		return
	}
	if evicted > 0 {
		s.logger.InfoContext(ctx, "swept expired results", "evicted", evicted)
	}
}

// waitWithJitter delays up to 10% of the interval before the first tick.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
