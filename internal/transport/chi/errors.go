package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/casetable/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeEmptyName        ErrorCode = "empty_name"
	CodeDuplicateName    ErrorCode = "duplicate_name"
	CodeNotFound         ErrorCode = "not_found"
	CodeUnresolvable     ErrorCode = "unresolvable_reference"
	CodeSuperseded       ErrorCode = "superseded"
	CodeNoDataset        ErrorCode = "no_dataset"
	CodeStructuralDrift  ErrorCode = "structural_drift"
	CodeHostRejected     ErrorCode = "host_rejected"
	CodeHostUnavailable  ErrorCode = "host_unavailable"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// HostMessage is the host's own explanation of a rejected request.
	HostMessage string `json:"host_message,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrEmptyName, http.StatusBadRequest, CodeEmptyName),
		sentinelHandler(domain.ErrDuplicateName, http.StatusConflict, CodeDuplicateName),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnresolvable, http.StatusNotFound, CodeUnresolvable),
		sentinelHandler(domain.ErrSuperseded, http.StatusConflict, CodeSuperseded),
		sentinelHandler(domain.ErrNoDataset, http.StatusConflict, CodeNoDataset),
		sentinelHandler(domain.ErrStructuralDrift, http.StatusConflict, CodeStructuralDrift),
		hostRejectedHandler,
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, CodeHostUnavailable),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyName,
		domain.ErrDuplicateName,
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrUnresolvable,
		domain.ErrSuperseded,
		domain.ErrNoDataset,
		domain.ErrStructuralDrift,
		domain.ErrHostRejected,
		domain.ErrTransport,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// hostRejectedHandler passes the host's rejection message through; it is
// written for the user, unlike transport errors.
func hostRejectedHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrHostRejected) {
		return false
	}
	resp := ErrorResponse{Code: CodeHostRejected, Message: msg}
	var hre *domain.HostRejectedError
	if errors.As(err, &hre) {
		resp.HostMessage = hre.Message
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
	return true
}
