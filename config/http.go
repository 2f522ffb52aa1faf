package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":3000"`

	// Timeout bounds reading a request and writing its response.
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// AuthToken, when set, must accompany every submission. Empty disables
	// auth entirely.
	AuthToken string `env:"APP_AUTH_TOKEN"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
}
