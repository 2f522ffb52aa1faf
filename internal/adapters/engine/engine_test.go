package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientOptions{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return client
}

func sourceJob(url string) *model.Job {
	return &model.Job{
		ID:         model.NewJobID(),
		Payload:    model.Payload{Mode: model.ModeSource, URL: url},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientOptions{})
	require.Error(t, err)
}

func TestExecuteDispatchesByMode(t *testing.T) {
	var gotPath string
	var gotPayload model.Payload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"source":"<html></html>"}`))
	}))

	out := client.Execute(context.Background(), sourceJob("https://example.com"))

	assert.Equal(t, http.StatusOK, out.Code)
	assert.JSONEq(t, `{"source":"<html></html>"}`, string(out.Payload))
	assert.Equal(t, "/source", gotPath)
	assert.Equal(t, "https://example.com", gotPayload.URL)
}

func TestExecuteTurnstilePaths(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"token":"xxx"}`))
	}))

	job := sourceJob("https://example.com")
	job.Payload.Mode = model.ModeTurnstileMin
	job.Payload.SiteKey = "0xAAAA"
	client.Execute(context.Background(), job)
	assert.Equal(t, "/turnstile/min", gotPath)

	job.Payload.Mode = model.ModeTurnstileMax
	client.Execute(context.Background(), job)
	assert.Equal(t, "/turnstile/max", gotPath)
}

func TestExecuteUnknownModeFails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("engine must not be called for an unknown mode")
	}))

	job := sourceJob("https://example.com")
	job.Payload.Mode = "bogus"
	out := client.Execute(context.Background(), job)

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Contains(t, out.Message, "unknown job mode")
}

func TestExecuteNormalizesEngineFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"browser crashed"}`))
	}))

	out := client.Execute(context.Background(), sourceJob("https://example.com"))

	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Equal(t, "browser crashed", out.Message)
}

func TestExecuteNormalizesTransportFailure(t *testing.T) {
	client, err := NewClient(ClientOptions{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.NoError(t, err)

	out := client.Execute(context.Background(), sourceJob("https://example.com"))
	assert.Equal(t, http.StatusInternalServerError, out.Code)
	assert.Contains(t, out.Message, "engine request")
}

func TestExecutePassesThroughTerminalNonSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"reason":"challenge unsolvable"}`))
	}))

	out := client.Execute(context.Background(), sourceJob("https://example.com"))
	assert.Equal(t, http.StatusForbidden, out.Code)
	assert.JSONEq(t, `{"reason":"challenge unsolvable"}`, string(out.Payload))
}

func TestExecuteWrapsNonJSONBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>raw page</html>"))
	}))

	out := client.Execute(context.Background(), sourceJob("https://example.com"))
	require.Equal(t, http.StatusOK, out.Code)

	var decoded string
	require.NoError(t, json.Unmarshal(out.Payload, &decoded))
	assert.Equal(t, "<html>raw page</html>", decoded)
}

func TestExecuteTruncatesOversizedBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", maxResponseBodyBytes+4096)))
	}))

	out := client.Execute(context.Background(), sourceJob("https://example.com"))
	require.Equal(t, http.StatusOK, out.Code)

	var decoded string
	require.NoError(t, json.Unmarshal(out.Payload, &decoded))
	assert.Len(t, decoded, maxResponseBodyBytes)
}

func TestReadyProbesAndCaches(t *testing.T) {
	var probes atomic.Int64
	var healthy atomic.Bool
	healthy.Store(true)
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != readyProbePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		probes.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	ctx := context.Background()

	assert.True(t, client.Ready(ctx))
	assert.True(t, client.Ready(ctx))
	assert.Equal(t, int64(1), probes.Load(), "verdict is cached within the window")

	// Flipping to unhealthy only shows up after the cache window.
	healthy.Store(false)
	client.readyMu.Lock()
	client.readyChecked = time.Now().Add(-readyCacheWindow)
	client.readyMu.Unlock()
	assert.False(t, client.Ready(ctx))
}
