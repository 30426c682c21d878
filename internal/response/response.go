// ===============================
// FILE: internal/response/response.go
// ===============================

package response

import (
	"encoding/json"
	"net/http"
	"time"

	"wavehub/internal/contextutils"
	"wavehub/internal/services"

	"go.uber.org/zap"
)

// ===============================
// RESPONSE TYPES
// ===============================

// APIResponse is the standard envelope for every JSON response.
type APIResponse struct {
	Success   bool         `json:"success"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// ErrorDetail carries error information in API responses.
type ErrorDetail struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Writer renders API responses and maps service errors to HTTP statuses.
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a response writer.
func NewWriter(logger *zap.Logger) *Writer {
	return &Writer{logger: logger}
}

// ===============================
// SUCCESS RESPONSES
// ===============================

// JSON writes a success envelope with the given status.
func (w *Writer) JSON(rw http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.write(rw, r, status, &APIResponse{
		Success: true,
		Data:    data,
	})
}

// OK writes a 200 success envelope.
func (w *Writer) OK(rw http.ResponseWriter, r *http.Request, data interface{}) {
	w.JSON(rw, r, http.StatusOK, data)
}

// Created writes a 201 success envelope.
func (w *Writer) Created(rw http.ResponseWriter, r *http.Request, data interface{}) {
	w.JSON(rw, r, http.StatusCreated, data)
}

// NoContent writes a 204 with no body.
func (w *Writer) NoContent(rw http.ResponseWriter) {
	rw.WriteHeader(http.StatusNoContent)
}

// ===============================
// ERROR RESPONSES
// ===============================

// Error maps err to the envelope and status of its ServiceError. Unknown
// errors become masked 500s; the cause stays in the log, not the body.
func (w *Writer) Error(rw http.ResponseWriter, r *http.Request, err error) {
	svcErr := services.GetServiceError(err)

	status := svcErr.GetStatusCode()
	if status >= http.StatusInternalServerError {
		w.logger.Error("request failed",
			zap.String("request_id", contextutils.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("error_type", svcErr.Type),
			zap.Error(err))
	}

	message := svcErr.Message
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	w.write(rw, r, status, &APIResponse{
		Success: false,
		Error: &ErrorDetail{
			Type:    svcErr.Type,
			Message: message,
			Details: svcErr.Details,
		},
	})
}

// ValidationError writes a 400 without building a ServiceError first.
func (w *Writer) ValidationError(rw http.ResponseWriter, r *http.Request, message string) {
	w.Error(rw, r, services.NewValidationError(message, nil))
}

func (w *Writer) write(rw http.ResponseWriter, r *http.Request, status int, body *APIResponse) {
	body.RequestID = contextutils.GetRequestID(r.Context())
	body.Timestamp = time.Now().Unix()

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(body); err != nil {
		w.logger.Error("failed to encode response", zap.Error(err))
	}
}
