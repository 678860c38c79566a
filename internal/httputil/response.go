// Package httputil holds the JSON request and response helpers shared by the
// API handlers and middleware.
package httputil

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	apperrors "github.com/Yassin6up/somoo-sub000/internal/errors"
)

// MaxBodyBytes bounds request and response bodies.
const MaxBodyBytes int64 = 1 << 20

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody as {"error": {...}}.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes an error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// WriteError maps err to its HTTP status and writes the envelope. Errors that
// are not service errors are reported as internal without leaking the cause.
func WriteError(w http.ResponseWriter, err error) {
	svcErr := apperrors.GetServiceError(err)
	if svcErr == nil {
		svcErr = apperrors.Internal("internal server error", err)
	}
	status := svcErr.HTTPStatus
	if status == 0 {
		status = apperrors.HTTPStatus(err)
	}
	message := svcErr.Message
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	WriteErrorResponse(w, status, string(svcErr.Code), message, svcErr.Details)
}

// DecodeJSON reads a single JSON object from the request body, rejecting
// unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	body, err := ReadAllStrict(r.Body, MaxBodyBytes)
	if err != nil {
		return apperrors.InvalidInput("%v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.InvalidInput("request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !stderrors.Is(err, io.EOF) {
		return apperrors.InvalidInput("request body must contain a single JSON object")
	}
	return nil
}
