package api

import (
	"encoding/json"
	"net/http"
)

// ErrorCode classifies a failed request in the response body.
type ErrorCode string

// Error codes and the status each one is sent with.
const (
	ErrCodeBadRequest      ErrorCode = "bad_request"
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeHistoryDisabled ErrorCode = "history_disabled"
	ErrCodeMethodNotAllow  ErrorCode = "method_not_allowed"
	ErrCodeInternal        ErrorCode = "internal_error"
)

var errorStatus = map[ErrorCode]int{
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeHistoryDisabled: http.StatusNotFound,
	ErrCodeMethodNotAllow:  http.StatusMethodNotAllowed,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// Error is the body of every non-2xx JSON response.
type Error struct {
	Status    int       `json:"status"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // Client may have gone away
	json.NewEncoder(w).Encode(v)
}

// writeError sends an Error for code, tagged with the request ID so log
// lines and client reports can be matched up.
func writeError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, Error{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(r),
	})
}
