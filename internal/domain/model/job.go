// Package model defines the core data types used throughout the clearance queue service.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode identifies which engine capability a job exercises.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type Mode string

const (
	// ModeSource extracts the rendered page source of a URL.
	ModeSource Mode = "source"
	// ModeTurnstileMin solves a Turnstile widget from a site key alone.
	ModeTurnstileMin Mode = "turnstile-min"
	// ModeTurnstileMax solves a Turnstile widget by loading the full target page.
	ModeTurnstileMax Mode = "turnstile-max"
	// ModeWAFSession acquires clearance session cookies for a protected site.
	ModeWAFSession Mode = "waf-session"
)

// ErrUnknownMode is returned when a job carries a mode no executor handles.
var ErrUnknownMode = errors.New("unknown job mode")

// ErrNotReady is returned when the engine capability is not available yet.
var ErrNotReady = errors.New("engine not ready")

// UnmarshalText implements encoding.TextUnmarshaler for Mode to allow env and JSON parsing.
func (m *Mode) UnmarshalText(text []byte) error {
	v := Mode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(text))
	}
	*m = v
	return nil
}

// Valid returns true if the Mode is one the service knows how to dispatch.
func (m Mode) Valid() bool {
	switch m {
	case ModeSource, ModeTurnstileMin, ModeTurnstileMax, ModeWAFSession:
		return true
	}
	return false
}

// Payload is the executor-facing portion of a submission. The auth token is
// stripped before it becomes part of a Job.
type Payload struct {
	Mode    Mode   `json:"mode"`
	URL     string `json:"url,omitempty"`
	SiteKey string `json:"siteKey,omitempty"`
	Proxy   string `json:"proxy,omitempty"`
}

// Job is a unit of submitted work. Jobs are never mutated after creation,
// only removed from the queue when picked up for execution.
type Job struct {
	ID         string    `json:"id"`
	Payload    Payload   `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJobID returns a collision-resistant job identifier.
func NewJobID() string {
	return uuid.NewString()
}

// SubmitRequest is the wire shape accepted by POST /submit.
type SubmitRequest struct {
	Mode      Mode   `json:"mode"      validate:"required"`
	URL       string `json:"url"       validate:"omitempty,url"`
	SiteKey   string `json:"siteKey"   validate:"omitempty,min=1"`
	Proxy     string `json:"proxy"     validate:"omitempty,url"`
	AuthToken string `json:"authToken" validate:"-"`
}

// Validate applies the mode-conditional requirements that struct tags cannot
// express: source and waf-session jobs need a URL, turnstile jobs a site key.
func (r *SubmitRequest) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(r.Mode))
	}
	switch r.Mode {
	case ModeSource, ModeWAFSession, ModeTurnstileMax:
		if r.URL == "" {
			return fmt.Errorf("mode %s requires a url", r.Mode)
		}
	case ModeTurnstileMin:
		if r.URL == "" || r.SiteKey == "" {
			return fmt.Errorf("mode %s requires a url and a siteKey", r.Mode)
		}
	}
	return nil
}

// ToPayload converts the request into the executor payload carried by a Job.
func (r *SubmitRequest) ToPayload() Payload {
	return Payload{
		Mode:    r.Mode,
		URL:     r.URL,
		SiteKey: r.SiteKey,
		Proxy:   r.Proxy,
	}
}
