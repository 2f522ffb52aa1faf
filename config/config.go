// Package config defines the environment-driven configuration for the
// clearance queue service.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See the individual domain files for the
// available variables:
//   - http.go: HTTP server and auth token
//   - engine.go: browser engine endpoint
//   - queue.go: retry policy, result retention, snapshot location
//   - admission.go: CPU admission control
//   - observability.go: StatsD metrics
package config

// AppConfig is the main application configuration struct composing
// domain-specific configuration from separate files.
type AppConfig struct {
	HTTP          HTTPConfig
	Engine        EngineConfig
	Queue         QueueConfig
	Admission     AdmissionConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// Call this after env parsing.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Engine.Sanitize()
	c.Queue.Sanitize()
	c.Admission.Sanitize()
}
