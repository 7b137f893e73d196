// Package httputil holds the HTTP plumbing shared by every API package:
// response envelopes, error mapping, query parsing and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the payload of every non-2xx JSON response.
type ErrorBody struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

type dataEnvelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v as is, without an envelope.
func JSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

// Success writes v inside a {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataEnvelope{Data: v})
}

// Error writes {"error": {"message": ...}}.
func Error(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: ErrorBody{Message: message}})
}

// ValidationError writes a 400 for a request body that failed struct validation.
// Each failed field is reported with its rule, e.g. "min=3".
func ValidationError(w http.ResponseWriter, err error) {
	body := ErrorBody{Message: "validation error"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Details = make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			body.Details = append(body.Details, FieldError{Field: fe.Field(), Rule: rule})
		}
	} else {
		body.Message = "validation error: " + err.Error()
	}

	writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: body})
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, status int, text string) {
	Blob(w, status, "text/plain; charset=utf-8", []byte(text))
}

// Blob writes body verbatim with the given content type.
func Blob(w http.ResponseWriter, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
