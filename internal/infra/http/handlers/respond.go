package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/logging"
	"github.com/xavierca1/sherpa/internal/usecase"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain and store errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.New("http").Error("request failed", logging.Err(err))
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func classify(err error) (int, string) {
	var de *usecase.DomainError
	switch {
	case errors.Is(err, entity.ErrLeadNotFound), errors.Is(err, entity.ErrExampleNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, entity.ErrDuplicateIdentity):
		return http.StatusConflict, "DUPLICATE_IDENTITY"
	case errors.Is(err, entity.ErrStaleState):
		return http.StatusConflict, "STALE_STATE"
	case errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "INVALID_TRANSITION"
	case errors.As(err, &de):
		if de.Code == usecase.CodeNotEditable {
			return http.StatusConflict, de.Code
		}
		return http.StatusBadRequest, de.Code
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: usecase.CodeValidation})
}
