package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	service "github.com/oshokin/catpoint/internal/service/security"
)

// Error is the body of every failed request.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeUnavailable = "analysis_unavailable"
	ErrCodeTooLarge    = "payload_too_large"
	ErrCodeRateLimited = "rate_limit_exceeded"
	ErrCodeInternal    = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v != nil {
		_ = json.NewEncoder(w).Encode(v) //nolint:errchkjson // The client may be gone already.
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeControllerError maps controller errors to HTTP status codes.
func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownArmingStatus),
		errors.Is(err, domain.ErrUnknownSensorType),
		errors.Is(err, domain.ErrEmptySensorName):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, repo.ErrSensorNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, service.ErrAnalysisFailure):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrCodeInternal, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
