package service

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/metrics"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/statsd"
)

const (
	defaultCPUThreshold = 0.8
	defaultPollInterval = 500 * time.Millisecond
)

// AdmissionServiceOptions groups dependencies for AdmissionService.
type AdmissionServiceOptions struct {
	Source       core.StatSource // Required: process stat source
	CPUThreshold float64         // Optional: admit while cpu fraction is below this; defaults to 0.8
	Cores        int             // Optional: cores to normalize cpu percent by; defaults to runtime.NumCPU
	PollInterval time.Duration   // Optional: Wait polling interval; defaults to 500ms
	Logger       *slog.Logger    // Optional: structured logger
	Metrics      statsd.Sink     // Optional: metrics sink
}

// AdmissionService gates the worker loop on live CPU pressure. It is advisory
// admission control: it only decides whether the next job may start, it never
// preempts in-flight work.
type AdmissionService struct {
	source    core.StatSource
	threshold float64
	cores     int
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewAdmissionService constructs a new AdmissionService.
func NewAdmissionService(opts AdmissionServiceOptions) (*AdmissionService, error) {
	if opts.Source == nil {
		return nil, errors.New("StatSource is required")
	}

	threshold := opts.CPUThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultCPUThreshold
	}
	cores := opts.Cores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AdmissionService{
		source:    opts.Source,
		threshold: threshold,
		cores:     cores,
		interval:  interval,
		logger:    logger.With("component", "admission"),
		metrics:   opts.Metrics,
	}, nil
}

// Sample takes a fresh resource sample and derives the CPU fraction by
// normalizing the raw percent against the configured core count.
func (s *AdmissionService) Sample(ctx context.Context) (core.Stats, error) {
	st, err := s.source.Sample(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	st.CPUFraction = st.CPUPercent / 100 / float64(s.cores)
	return st, nil
}

// Stats returns the current sample, best effort. A sampling failure is logged
// and reported as zero usage.
func (s *AdmissionService) Stats(ctx context.Context) core.Stats {
	st, err := s.Sample(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "stat sample failed", "error", err)
		return core.Stats{}
	}
	return st
}

// MayProceed reports whether the next job may start. Load changes
// continuously, so every call takes a fresh sample. A sampling failure fails
// open: a broken stat source must not wedge the queue.
func (s *AdmissionService) MayProceed(ctx context.Context) bool {
	st, err := s.Sample(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "stat sample failed, admitting", "error", err)
		return true
	}
	return st.CPUFraction < s.threshold
}

// Wait blocks until MayProceed is true or the context ends, polling at the
// configured interval. It returns the context error on cancellation.
func (s *AdmissionService) Wait(ctx context.Context) error {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.MayProceed(ctx) {
			if waited := time.Since(start); waited >= s.interval {
				s.logger.DebugContext(ctx, "admission granted after wait", "waited", waited)
				metrics.EmitAdmissionWait(s.metrics, waited)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// Threshold returns the configured admission threshold.
func (s *AdmissionService) Threshold() float64 {
	return s.threshold
}
