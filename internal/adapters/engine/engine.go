// Package engine bridges jobs to the browser-automation engine over its local
// HTTP contract. The engine process itself (browser lifecycle, challenge
// solving) stays behind this boundary.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
)

const (
	// maxResponseBodyBytes bounds what we keep of an engine response; rendered
	// page sources can be large but results should not be unbounded.
	maxResponseBodyBytes = 256 * 1024

	readyCacheWindow = 5 * time.Second
	readyProbePath   = "/healthz"
)

// modePaths maps each job mode to its engine endpoint.
var modePaths = map[model.Mode]string{
	model.ModeSource:       "/source",
	model.ModeTurnstileMin: "/turnstile/min",
	model.ModeTurnstileMax: "/turnstile/max",
	model.ModeWAFSession:   "/waf-session",
}

// ClientOptions configures the engine bridge.
type ClientOptions struct {
	BaseURL    string        // Required: engine base URL, e.g. http://127.0.0.1:3001
	HTTPClient *http.Client  // Optional: defaults to a client with Timeout
	Timeout    time.Duration // Optional: per-job timeout; defaults to 120s
	Logger     *slog.Logger  // Optional: structured logger
}

// Client implements core.Executor against the engine's HTTP contract.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger

	readyMu      sync.Mutex
	ready        bool
	readyChecked time.Time
}

var _ core.Executor = (*Client)(nil)

// NewClient constructs an engine client.
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("engine base URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		base:   base,
		http:   hc,
		logger: logger.With("component", "engine"),
	}, nil
}

// Execute dispatches the job payload to the engine endpoint for its mode.
// Unknown modes, transport errors and engine 5xx responses all normalize to a
// code 500 outcome so the worker loop's retry policy applies uniformly.
func (c *Client) Execute(ctx context.Context, job *model.Job) model.Outcome {
	path, ok := modePaths[job.Payload.Mode]
	if !ok {
		return failure(fmt.Sprintf("%v: %q", model.ErrUnknownMode, job.Payload.Mode))
	}

	body, err := json.Marshal(job.Payload)
	if err != nil {
		return failure(fmt.Sprintf("encode payload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return failure(fmt.Sprintf("engine request: %v", err))
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "close engine response body", "error", cerr)
		}
	}()

	raw, truncated, err := readBounded(resp.Body)
	if err != nil {
		return failure(fmt.Sprintf("read engine response: %v", err))
	}
	if truncated {
		c.logger.WarnContext(ctx, "engine response truncated",
			"job_id", job.ID, "limit_bytes", maxResponseBodyBytes)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return failure(engineErrorMessage(raw, resp.StatusCode))
	}

	return model.Outcome{
		Code:    resp.StatusCode,
		Payload: asJSONPayload(raw),
	}
}

// Ready probes the engine health endpoint, caching the verdict briefly so a
// burst of submissions does not turn into a burst of probes.
func (c *Client) Ready(ctx context.Context) bool {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()

	if time.Since(c.readyChecked) < readyCacheWindow {
		return c.ready
	}

	c.ready = c.probe(ctx)
	c.readyChecked = time.Now()
	return c.ready
}

func (c *Client) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.base+readyProbePath, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode == http.StatusOK
}

func failure(msg string) model.Outcome {
	return model.Outcome{Code: http.StatusInternalServerError, Message: msg}
}

func engineErrorMessage(raw []byte, status int) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return fmt.Sprintf("engine returned status %d", status)
}

// asJSONPayload returns raw verbatim when it is already valid JSON, otherwise
// wraps it as a JSON string so Result.Payload always round-trips.
func asJSONPayload(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return nil
	}
	return quoted
}

func readBounded(body io.Reader) ([]byte, bool, error) {
	limited := io.LimitReader(body, maxResponseBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, false, err
	}
	if len(data) > maxResponseBodyBytes {
		data = data[:maxResponseBodyBytes]
		if _, derr := io.Copy(io.Discard, body); derr != nil {
			return data, true, derr
		}
		return data, true, nil
	}
	return data, false, nil
}
