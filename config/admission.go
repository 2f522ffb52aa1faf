package config

import "time"

// AdmissionConfig contains CPU admission control configuration.
type AdmissionConfig struct {
	// CPUThreshold is the cpu fraction (0..1] below which the worker loop may
	// dequeue the next job.
	CPUThreshold float64 `env:"ADMISSION_CPU_THRESHOLD" envDefault:"0.8"`

	// Cores is the core count used to normalize raw cpu percent. Zero means
	// use the machine's core count.
	Cores int `env:"ADMISSION_CORES" envDefault:"0"`

	// PollInterval is how often the worker loop re-samples while waiting for
	// headroom.
	PollInterval time.Duration `env:"ADMISSION_POLL_INTERVAL" envDefault:"500ms"`
}

// Sanitize applies guardrails to admission configuration values.
func (a *AdmissionConfig) Sanitize() {
	if a.CPUThreshold <= 0 || a.CPUThreshold > 1 {
		a.CPUThreshold = 0.8
	}
	if a.Cores < 0 {
		a.Cores = 0
	}
	if a.PollInterval <= 0 {
		a.PollInterval = 500 * time.Millisecond
	}
}
