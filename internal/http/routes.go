package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Queue     *service.QueueService
	Admission *service.AdmissionService
	Engine    core.Executor
	AuthToken string
	Logger    *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	submit := NewSubmitHandlers(services.Queue, services.Admission, services.Engine, services.AuthToken)
	results := &ResultHandlers{Queue: services.Queue}

	mux.HandleFunc("POST /submit", submit.Submit)
	mux.HandleFunc("GET /result/{jobId}", results.Get)
	mux.HandleFunc("GET /healthz", healthHandler)
	mux.HandleFunc("HEAD /healthz", healthHandler)

	// Catch-all for unmatched routes so 404s come back as JSON too.
	mux.HandleFunc("/", notFoundHandler)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Order: Recover -> Logging -> mux
	var h http.Handler = mux
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteStatus(w, http.StatusOK, "ok")
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, ErrorParams{
		Code:    http.StatusNotFound,
		ErrCode: "not_found",
		Err:     errors.New("no such route: " + r.URL.Path),
	})
}
