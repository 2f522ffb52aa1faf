// Package httpx provides the HTTP surface of the clearance queue service.
package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Submit payloads are a mode plus a couple of strings; anything bigger than
// this is not a legitimate request.
const maxRequestBodyBytes = 64 << 10

// DecodeJSON decodes JSON from the request body into the destination and
// handles errors. Returns true on success; on failure the error response has
// already been written.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client disconnects can't be recovered from here.
		return
	}
}

// statusEnvelope is the body for states that carry no payload: a queued job
// with no result yet, or a liveness probe.
type statusEnvelope struct {
	Status string `json:"status"`
}

// WriteStatus writes a bare {"status": ...} envelope.
func WriteStatus(w http.ResponseWriter, code int, status string) {
	WriteJSON(w, code, statusEnvelope{Status: status})
}

// WritePending reports that a job id has no consumable result. Unknown ids
// use the same body: callers cannot probe which ids exist.
func WritePending(w http.ResponseWriter) {
	WriteStatus(w, http.StatusOK, "pending")
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}
