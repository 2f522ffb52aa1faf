// Package metrics provides standardized metric emission for queue lifecycle events.
package metrics

import (
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/observability/statsd"
)

// Transition constants for metric tagging.
const (
	TransitionQueued    = "queued"
	TransitionCompleted = "completed"
	TransitionRetried   = "retried"
	TransitionGaveUp    = "gave_up"
)

// JobMetric captures details about a job lifecycle event.
type JobMetric struct {
	Mode       string
	Transition string
	Duration   time.Duration
}

// EmitJobLifecycle emits a counter (and timing, when a duration is known) for
// a job lifecycle transition.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"mode":       in.Mode,
		"transition": in.Transition,
	}
	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, tags)
	}
}

// EmitQueueDepth reports the current number of pending jobs.
func EmitQueueDepth(sink statsd.Sink, depth int) {
	if sink == nil {
		return
	}
	sink.Gauge("queue.depth", float64(depth), nil)
}

// EmitAdmissionWait records how long the worker loop waited for CPU headroom
// before dequeuing a job.
func EmitAdmissionWait(sink statsd.Sink, waited time.Duration) {
	if sink == nil || waited <= 0 {
		return
	}
	sink.Timing("admission.wait", waited, nil)
}

// EmitSweep reports how many results a TTL sweep evicted.
func EmitSweep(sink statsd.Sink, evicted int) {
	if sink == nil {
		return
	}
	sink.Count("results.swept", int64(evicted), nil)
}
