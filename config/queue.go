package config

import "time"

// QueueConfig contains retry policy, result retention and persistence
// configuration for the job queue.
type QueueConfig struct {
	// MaxAttempts is the total number of executor invocations per job before
	// the queue gives up.
	MaxAttempts int `env:"QUEUE_MAX_ATTEMPTS" envDefault:"5"`

	// RetryDelay is the fixed wait between failed attempts. Deliberately not
	// exponential: the admission controller already throttles intake.
	RetryDelay time.Duration `env:"QUEUE_RETRY_DELAY" envDefault:"2s"`

	// ResultTTL is how long an uncollected result is retained.
	ResultTTL time.Duration `env:"RESULT_TTL" envDefault:"15m"`

	// SweepInterval is the cadence of the TTL sweep.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`

	// SnapshotPath is the canonical location of the durable queue snapshot.
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data/queue.json"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	if q.MaxAttempts < 1 {
		q.MaxAttempts = 1
	}
	if q.RetryDelay < 0 {
		q.RetryDelay = 0
	}
	if q.ResultTTL <= 0 {
		q.ResultTTL = 15 * time.Minute
	}
	if q.SweepInterval <= 0 {
		q.SweepInterval = time.Minute
	}
	if q.SnapshotPath == "" {
		q.SnapshotPath = "data/queue.json"
	}
}
