package httpx

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/core"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/domain/model"
	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/service"
)

// SubmitHandlers provides HTTP handlers for job submission.
type SubmitHandlers struct {
	Queue     *service.QueueService
	Admission *service.AdmissionService
	Engine    core.Executor
	AuthToken string

	validate *validator.Validate
}

// NewSubmitHandlers constructs submit handlers with a shared validator.
func NewSubmitHandlers(queue *service.QueueService, admission *service.AdmissionService, engine core.Executor, authToken string) *SubmitHandlers {
	return &SubmitHandlers{
		Queue:     queue,
		Admission: admission,
		Engine:    engine,
		AuthToken: authToken,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// submitAccepted is the fast-acknowledge response: the job is queued, not done.
type submitAccepted struct {
	Status      string     `json:"status"`
	JobID       string     `json:"jobId"`
	QueueLength int        `json:"queueLength"`
	CPU         core.Stats `json:"cpu"`
}

// Submit handles POST /submit. Validation, auth and readiness are the only
// synchronous failure paths; everything after acceptance resolves into a
// stored result.
func (h *SubmitHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	if h.AuthToken != "" &&
		subtle.ConstantTimeCompare([]byte(req.AuthToken), []byte(h.AuthToken)) != 1 {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "invalid_token",
			Err:     errors.New("auth token mismatch"),
		})
		return
	}

	if !h.Engine.Ready(r.Context()) {
		WriteError(w, ErrorParams{
			Code:    http.StatusServiceUnavailable,
			ErrCode: "not_ready",
			Err:     model.ErrNotReady,
		})
		return
	}

	job, depth, err := h.Queue.Submit(r.Context(), &req)
	if err != nil {
		code, errCode := http.StatusInternalServerError, "submit_failed"
		if errors.Is(err, model.ErrUnknownMode) {
			code, errCode = http.StatusBadRequest, "invalid_request"
		}
		WriteError(w, ErrorParams{Code: code, ErrCode: errCode, Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, submitAccepted{
		Status:      "queued",
		JobID:       job.ID,
		QueueLength: depth,
		CPU:         h.Admission.Stats(r.Context()),
	})
}
