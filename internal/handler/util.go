package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/talentbridge/messaging/internal/policy"
	"github.com/talentbridge/messaging/internal/service"
	"github.com/talentbridge/messaging/internal/store"
	"github.com/talentbridge/messaging/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON decodes a bounded request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// errorResponse maps a service error to a status and body.
func errorResponse(err error) (int, ErrorResponse) {
	var violation *policy.Violation
	switch {
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "policy_violation",
			Reason:  string(violation.Reason),
			Message: violation.UserMessage(),
		}
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, ErrorResponse{
			Error:   "permission_denied",
			Message: err.Error(),
		}
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrContentTooLong),
		errors.Is(err, service.ErrInvalidParticipants),
		errors.Is(err, store.ErrInvalid):
		return http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		}
	case service.IsRetryable(err):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:     "store_unavailable",
			Message:   "Temporarily unavailable, please retry.",
			Retryable: true,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal_error"}
	}
}

// writeServiceError writes the response for a failed service call.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	}
	if body.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}
