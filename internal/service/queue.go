// Package service contains the business logic of the clearance queue:
// admission-gated job processing, result retention and TTL sweeping.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/metrics"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/statsd"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 2 * time.Second

	// retryableCode marks an executor outcome as transient; any other code is
	// terminal and returned to the caller as-is.
	retryableCode = http.StatusInternalServerError
)

// QueueServiceOptions groups dependencies for QueueService.
type QueueServiceOptions struct {
	Store     core.SnapshotStore // Required: durable snapshot store
	Executor  core.Executor      // Required: task executor
	Admission *AdmissionService  // Required: CPU admission gate

	MaxAttempts int           // Optional: executor invocations per job; defaults to 5
	RetryDelay  time.Duration // Optional: fixed wait between attempts; defaults to 2s
	Logger      *slog.Logger  // Optional: structured logger
	Metrics     statsd.Sink   // Optional: metrics sink
}

// QueueService owns the in-memory job queue and result cache, both mirrors of
// the durable snapshot. A single admission-gated drain loop processes jobs in
// strict FIFO submission order, one at a time; the engine behind the executor
// is a serially-reusable resource, not a parallel pool.
type QueueService struct {
	store       core.SnapshotStore
	exec        core.Executor
	admission   *AdmissionService
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	metrics     statsd.Sink

	mu      sync.Mutex
	queue   []*model.Job
	results map[string]*model.Result

	runCtx   context.Context
	draining atomic.Bool
	wg       sync.WaitGroup
}

// NewQueueService constructs a new QueueService. Call Start before Submit.
func NewQueueService(opts QueueServiceOptions) (*QueueService, error) {
	if opts.Store == nil {
		return nil, errors.New("SnapshotStore is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("Executor is required")
	}
	if opts.Admission == nil {
		return nil, errors.New("AdmissionService is required")
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QueueService{
		store:       opts.Store,
		exec:        opts.Executor,
		admission:   opts.Admission,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger.With("component", "queue"),
		metrics:     opts.Metrics,
		results:     map[string]*model.Result{},
	}, nil
}

// Start hydrates the queue and result cache from the durable snapshot and
// resumes the drain loop if work was pending when the process last stopped.
// The given context bounds all background processing.
func (s *QueueService) Start(ctx context.Context) error {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("hydrate queue: %w", err)
	}

	s.mu.Lock()
	s.queue = append([]*model.Job{}, snap.Queue...)
	s.results = make(map[string]*model.Result, len(snap.Results))
	for id, res := range snap.Results {
		s.results[id] = res
	}
	pending := len(s.queue)
	s.mu.Unlock()

	s.runCtx = ctx

	if pending > 0 {
		s.logger.InfoContext(ctx, "resuming pending jobs after restart", "pending", pending)
		s.kick()
	}
	return nil
}

// Submit validates the request, appends a new job to the durable queue and
// wakes the drain loop. It acknowledges fast: the caller gets the job id and
// queue position back immediately, not the execution outcome.
func (s *QueueService) Submit(ctx context.Context, req *model.SubmitRequest) (*model.Job, int, error) {
	if s.runCtx == nil {
		return nil, 0, errors.New("queue service not started")
	}
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	job := &model.Job{
		ID:         model.NewJobID(),
		Payload:    req.ToPayload(),
		EnqueuedAt: time.Now().UTC(),
	}

	if err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		snap.Queue = append(snap.Queue, job)
		return nil
	}); err != nil {
		return nil, 0, fmt.Errorf("persist job: %w", err)
	}

	s.mu.Lock()
	s.queue = append(s.queue, job)
	depth := len(s.queue)
	s.mu.Unlock()

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Mode:       string(job.Payload.Mode),
		Transition: metrics.TransitionQueued,
	})
	metrics.EmitQueueDepth(s.metrics, depth)

	s.kick()
	return job, depth, nil
}

// Len returns the number of pending jobs.
func (s *QueueService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Wait blocks until the drain loop has exited. Intended for shutdown after
// the Start context has been cancelled.
func (s *QueueService) Wait() {
	s.wg.Wait()
}

// kick starts the drain loop unless one is already running. The drain loop is
// single-flight per process.
func (s *QueueService) kick() {
	if !s.draining.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.drain(s.runCtx)
}

func (s *QueueService) drain(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.draining.Store(false)
		// A submit racing with this exit must not strand its job.
		if ctx.Err() == nil && s.Len() > 0 {
			s.kick()
		}
	}()

	for ctx.Err() == nil {
		if s.Len() == 0 {
			return
		}
		if err := s.admission.Wait(ctx); err != nil {
			return
		}

		job := s.pop()
		if job == nil {
			return
		}

		// Persist the removal before executing so a restart never replays a
		// job from the queue. A crash between here and the result write loses
		// the job; see DESIGN.md for why that window is accepted.
		if err := s.store.Update(ctx, func(snap *model.Snapshot) error {
			snap.Queue = removeJob(snap.Queue, job.ID)
			return nil
		}); err != nil {
			s.logger.ErrorContext(ctx, "persist dequeue failed", "job_id", job.ID, "error", err)
		}

		result := s.executeWithRetry(ctx, job)
		s.record(ctx, result)

		transition := metrics.TransitionCompleted
		if !result.Success {
			transition = metrics.TransitionGaveUp
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Mode:       string(job.Payload.Mode),
			Transition: transition,
			Duration:   result.FinishedAt.Sub(job.EnqueuedAt),
		})
		metrics.EmitQueueDepth(s.metrics, s.Len())
	}
}

func (s *QueueService) pop() *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	s.queue = s.queue[1:]
	return head
}

func removeJob(queue []*model.Job, id string) []*model.Job {
	out := queue[:0]
	for _, j := range queue {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}

// executeWithRetry dispatches the job to the executor up to maxAttempts
// times, waiting a fixed delay between transient failures. The first non-500
// outcome is terminal and returned with success:true. Exhaustion produces a
// give-up result with success:false and code 200: the system is healthy, the
// job just could not be completed.
func (s *QueueService) executeWithRetry(ctx context.Context, job *model.Job) *model.Result {
	var last model.Outcome
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		out := s.exec.Execute(ctx, job)
		if out.Code != retryableCode {
			st := s.admission.Stats(ctx)
			return &model.Result{
				JobID:   job.ID,
				Success: true,
				Code:    out.Code,
				Payload: out.Payload,
				Message: out.Message,
				Stats: &model.ResultStats{
					CPUFraction: st.CPUFraction,
					CPUPercent:  st.CPUPercent,
					QueueLength: s.Len(),
				},
				FinishedAt: time.Now().UTC(),
			}
		}

		last = out
		s.logger.WarnContext(ctx, "job attempt failed",
			"job_id", job.ID,
			"mode", job.Payload.Mode,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"message", out.Message,
		)
		if attempt == s.maxAttempts {
			break
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Mode:       string(job.Payload.Mode),
			Transition: metrics.TransitionRetried,
		})

		select {
		case <-ctx.Done():
			return s.giveUp(job, attempt, fmt.Sprintf("interrupted while retrying: %v", ctx.Err()))
		case <-time.After(s.retryDelay):
		}
	}

	msg := last.Message
	if msg == "" {
		msg = "executor failed"
	}
	return s.giveUp(job, s.maxAttempts, msg)
}

func (s *QueueService) giveUp(job *model.Job, attempts int, reason string) *model.Result {
	return &model.Result{
		JobID:      job.ID,
		Success:    false,
		Code:       http.StatusOK,
		Message:    fmt.Sprintf("gave up after %d attempt(s): %s", attempts, reason),
		FinishedAt: time.Now().UTC(),
	}
}

// record stores the result in the cache and mirrors it to the snapshot.
func (s *QueueService) record(ctx context.Context, result *model.Result) {
	s.mu.Lock()
	s.results[result.JobID] = result
	s.mu.Unlock()

	if err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		snap.Results[result.JobID] = result
		return nil
	}); err != nil {
		s.logger.ErrorContext(ctx, "persist result failed", "job_id", result.JobID, "error", err)
	}
}

// Consume returns the result for a job id and deletes it from both the cache
// and the snapshot in the same logical operation. The whole consume runs
// inside one store Update so the store's serialized-write order also orders
// concurrent consumes: at most one caller is ever delivered a given result.
// A miss in memory falls back to the snapshot itself, which covers results
// written by a previous process instance. Repeated calls after delivery
// report absent, not an error.
func (s *QueueService) Consume(ctx context.Context, jobID string) (*model.Result, bool) {
	var result *model.Result
	err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		s.mu.Lock()
		res, ok := s.results[jobID]
		if ok {
			delete(s.results, jobID)
		}
		s.mu.Unlock()

		if !ok {
			if res, ok = snap.Results[jobID]; !ok {
				return core.ErrSkipUpdate
			}
		}
		result = res
		delete(snap.Results, jobID)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "persist result consumption failed", "job_id", jobID, "error", err)
		// The memory copy is already gone; delivering beats losing the result.
		return result, result != nil
	}
	return result, result != nil
}

// SweepExpired evicts every result older than ttl from memory and the
// snapshot, returning how many were removed. Results nobody ever collected
// must not grow the snapshot without bound.
func (s *QueueService) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	for id, res := range s.results {
		if res.Expired(now, ttl) {
			delete(s.results, id)
		}
	}
	s.mu.Unlock()

	evicted := 0
	err := s.store.Update(ctx, func(snap *model.Snapshot) error {
		for id, res := range snap.Results {
			if res.Expired(now, ttl) {
				delete(snap.Results, id)
				evicted++
			}
		}
		if evicted == 0 {
			return core.ErrSkipUpdate
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep results: %w", err)
	}

	metrics.EmitSweep(s.metrics, evicted)
	return evicted, nil
}
