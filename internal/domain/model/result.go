package model

import (
	"encoding/json"
	"time"
)

// Outcome is the tagged terminal outcome of a single executor invocation.
// Code follows HTTP status semantics: 500 marks a retryable failure, anything
// else is treated as terminal.
type Outcome struct {
	Code    int             `json:"code"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ResultStats captures admission stats at the moment a job completed.
type ResultStats struct {
	CPUFraction float64 `json:"cpu_fraction"`
	CPUPercent  float64 `json:"cpu_percent"`
	QueueLength int     `json:"queue_length"`
}

// Result is the terminal outcome of a Job. Exactly one Result is produced per
// job, by the worker loop, after the executor succeeds or retries are
// exhausted. It lives in the result cache until consumed by a read or evicted
// by the TTL sweep.
type Result struct {
	JobID      string          `json:"job_id"`
	Success    bool            `json:"success"`
	Code       int             `json:"code"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Message    string          `json:"message,omitempty"`
	Stats      *ResultStats    `json:"stats,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Expired reports whether the result is older than ttl at the given instant.
func (r *Result) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.FinishedAt) > ttl
}
