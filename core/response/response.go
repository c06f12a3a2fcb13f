// Package response writes the JSON envelope shared by every generated route:
//
//	{"success": true, "result": ...}
//	{"success": false, "statusCode": 400, "error": {"name": "...", "message": "..."}}
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/artpar/modelwire/core/apperr"
)

// Envelope wraps a result.
type Envelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

// ErrorBody describes an error.
type ErrorBody struct {
	Name    string         `json:"name"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// ErrorEnvelope wraps an error.
type ErrorEnvelope struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Error      ErrorBody `json:"error"`
}

// Success reports whether status denotes success (2xx or 3xx).
func Success(status int) bool {
	return status >= 200 && status < 400
}

// New builds the envelope for body. A string body becomes {"message": body}
// and a nil body becomes {}.
func New(status int, body any) Envelope {
	var result any
	switch b := body.(type) {
	case nil:
		result = map[string]any{}
	case string:
		result = map[string]any{"message": b}
	default:
		result = b
	}
	return Envelope{Success: Success(status), Result: result}
}

// Write writes body wrapped in an envelope with the given status.
func Write(w http.ResponseWriter, status int, body any) {
	writeJSON(w, status, New(status, body))
}

// Error writes err as an error envelope with the given status. Errors other
// than *apperr.Error are reported with the generic name.
func Error(w http.ResponseWriter, status int, err error) {
	body := ErrorBody{Name: string(apperr.KindGeneric)}
	if err != nil {
		body.Message = err.Error()
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Name = ae.Name()
		body.Message = ae.Message
		body.Meta = ae.Meta
	}

	writeJSON(w, status, ErrorEnvelope{
		Success:    false,
		StatusCode: status,
		Error:      body,
	})
}

// Static returns a handler that always writes the same envelope. A zero
// status means 200.
func Static(status int, body any) http.Handler {
	if status == 0 {
		status = http.StatusOK
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Write(w, status, body)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
