package httpx

import (
	"errors"
	"net/http"

	"github.com/ERLANRAHMAT/cf-clearance-scraper/internal/service"
)

// ResultHandlers provides HTTP handlers for result retrieval.
type ResultHandlers struct {
	Queue *service.QueueService
}

// Get handles GET /result/{jobId}. Delivery is a consuming read: the first
// call after resolution returns the result and deletes it; later calls (and
// unknown ids) report pending. Unknown and not-yet-finished ids are
// deliberately indistinguishable.
func (h *ResultHandlers) Get(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("job id is required"),
		})
		return
	}

	result, ok := h.Queue.Consume(r.Context(), jobID)
	if !ok {
		WritePending(w)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
