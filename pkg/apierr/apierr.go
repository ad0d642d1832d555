// backend/pkg/apierr/apierr.go
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks a rejected request (missing or malformed identifiers).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrBackendUnavailable marks a store connectivity failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation tags msg as a validation failure.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Status maps an error onto the HTTP status it should be reported with.
func Status(err error) int {
	var apiErr *Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &apiErr) && apiErr.Status != 0:
		return apiErr.Status
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type body struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Write renders err as a JSON error body. summary is the client-facing headline;
// the underlying message is only included when verbose is set.
func Write(w http.ResponseWriter, err error, summary string, verbose bool) {
	status := Status(err)
	b := body{Error: summary}
	if status == http.StatusServiceUnavailable {
		b.Error = ErrBackendUnavailable.Error()
	}
	if verbose || status == http.StatusBadRequest {
		b.Message = err.Error()
	}
	JSON(w, status, b)
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
