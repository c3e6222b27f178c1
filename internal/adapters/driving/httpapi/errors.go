package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrDocumentNotReady, http.StatusConflict, "document_not_ready"},
	{domain.ErrIngestionInProgress, http.StatusConflict, "ingestion_in_progress"},
	{domain.ErrQueueFull, http.StatusServiceUnavailable, "queue_full"},
	{domain.ErrRetrievalTimeout, http.StatusGatewayTimeout, "retrieval_timeout"},
	{domain.ErrGenerationFailed, http.StatusBadGateway, "generation_failed"},
	{domain.ErrLLMUnavailable, http.StatusServiceUnavailable, "llm_unavailable"},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, "embedding_unavailable"},
	{domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_format"},
}

// statusFor maps a core error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// publicError maps err to its status, code and client-safe message.
// Internal failures are logged and their detail withheld.
func publicError(err error) (int, string, string) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
		msg = "internal error"
	}
	return status, code, msg
}

func writeError(w http.ResponseWriter, err error) {
	status, code, msg := publicError(err)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidInput, err)
	}
	return nil
}
