package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/data"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/service"
)

type idleStats struct{}

func (idleStats) Sample(context.Context) (core.Stats, error) {
	return core.Stats{}, nil
}

// stubExecutor resolves every job with a fixed outcome.
type stubExecutor struct {
	ready   bool
	outcome model.Outcome
}

func (s *stubExecutor) Execute(context.Context, *model.Job) model.Outcome { return s.outcome }
func (s *stubExecutor) Ready(context.Context) bool                        { return s.ready }

type routerFixture struct {
	handler http.Handler
	queue   *service.QueueService
}

func newRouterFixture(t *testing.T, exec core.Executor, authToken string) *routerFixture {
	t.Helper()

	store, err := data.NewFileSnapshotStore(data.FileSnapshotStoreOptions{
		Path: filepath.Join(t.TempDir(), "queue.json"),
	})
	require.NoError(t, err)

	admission, err := service.NewAdmissionService(service.AdmissionServiceOptions{
		Source:       idleStats{},
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	queue, err := service.NewQueueService(service.QueueServiceOptions{
		Store:      store,
		Executor:   exec,
		Admission:  admission,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		queue.Wait()
	})
	require.NoError(t, queue.Start(ctx))

	handler := NewRouter(RouterServices{
		Queue:     queue,
		Admission: admission,
		Engine:    exec,
		AuthToken: authToken,
	})
	return &routerFixture{handler: handler, queue: queue}
}

func okExecutor() *stubExecutor {
	return &stubExecutor{
		ready:   true,
		outcome: model.Outcome{Code: http.StatusOK, Payload: json.RawMessage(`{"source":"<html></html>"}`)},
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSubmitQueuesJob(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
		`{"mode":"source","url":"https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "queued", body["status"])
	assert.NotEmpty(t, body["jobId"])
	assert.EqualValues(t, 1, body["queueLength"])
	assert.Contains(t, body, "cpu")
}

func TestSubmitThenPollResultEndToEnd(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
		`{"mode":"source","url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	jobID, _ := decodeBody(t, rec)["jobId"].(string)
	require.NotEmpty(t, jobID)

	var body map[string]any
	require.Eventually(t, func() bool {
		poll := doJSON(t, fx.handler, http.MethodGet, "/result/"+jobID, "")
		if poll.Code != http.StatusOK {
			return false
		}
		body = decodeBody(t, poll)
		return body["status"] != "pending"
	}, 5*time.Second, 2*time.Millisecond)

	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, http.StatusOK, body["code"])
	payload, _ := body["payload"].(map[string]any)
	assert.Equal(t, "<html></html>", payload["source"])

	// Delivery consumed the result: the next poll reports pending again.
	again := doJSON(t, fx.handler, http.MethodGet, "/result/"+jobID, "")
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, "pending", decodeBody(t, again)["status"])
}

func TestSubmitRejectsMalformedJSON(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodPost, "/submit", `{"mode":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	huge := `{"mode":"source","url":"https://example.com","proxy":"` +
		strings.Repeat("x", 80<<10) + `"}`
	rec := doJSON(t, fx.handler, http.MethodPost, "/submit", huge)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestSubmitRejectsUnknownFields(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
		`{"mode":"source","url":"https://example.com","bogus":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitValidatesRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing mode", body: `{"url":"https://example.com"}`},
		{name: "unknown mode", body: `{"mode":"teleport","url":"https://example.com"}`},
		{name: "source without url", body: `{"mode":"source"}`},
		{name: "turnstile without siteKey", body: `{"mode":"turnstile-min","url":"https://example.com"}`},
		{name: "malformed url", body: `{"mode":"source","url":"not a url"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newRouterFixture(t, okExecutor(), "")
			rec := doJSON(t, fx.handler, http.MethodPost, "/submit", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestSubmitAuthToken(t *testing.T) {
	t.Run("mismatch is rejected", func(t *testing.T) {
		fx := newRouterFixture(t, okExecutor(), "secret")
		rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
			`{"mode":"source","url":"https://example.com"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_token", decodeBody(t, rec)["error"])
	})

	t.Run("match is accepted", func(t *testing.T) {
		fx := newRouterFixture(t, okExecutor(), "secret")
		rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
			`{"mode":"source","url":"https://example.com","authToken":"secret"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not enforced when unconfigured", func(t *testing.T) {
		fx := newRouterFixture(t, okExecutor(), "")
		rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
			`{"mode":"source","url":"https://example.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSubmitRejectedWhenEngineNotReady(t *testing.T) {
	exec := okExecutor()
	exec.ready = false
	fx := newRouterFixture(t, exec, "")

	rec := doJSON(t, fx.handler, http.MethodPost, "/submit",
		`{"mode":"source","url":"https://example.com"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decodeBody(t, rec)["error"])
	assert.Equal(t, 0, fx.queue.Len())
}

func TestResultUnknownJobIsPending(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodGet, "/result/"+model.NewJobID(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", decodeBody(t, rec)["status"])
}

func TestHealthz(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestUnmatchedRouteIs404(t *testing.T) {
	fx := newRouterFixture(t, okExecutor(), "")

	rec := doJSON(t, fx.handler, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody(t, rec)["error"])
}
