package config

import "time"

// EngineConfig describes how to reach the browser-automation engine.
type EngineConfig struct {
	// URL is the base URL of the engine's local HTTP contract.
	URL string `env:"ENGINE_URL" envDefault:"http://127.0.0.1:3001"`

	// Timeout bounds a single job execution against the engine. Challenge
	// solving can legitimately take minutes.
	Timeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"120s"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.Timeout <= 0 {
		e.Timeout = 120 * time.Second
	}
}
