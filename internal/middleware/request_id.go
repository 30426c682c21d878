// ===============================
// FILE: internal/middleware/request_id.go
// ===============================

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"wavehub/internal/contextutils"

	"github.com/gofrs/uuid"
)

// Request ID header constants
const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
)

// RequestID injects a correlation ID into every request, honoring one
// supplied by an upstream proxy.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if requestID == "" {
				requestID = r.Header.Get(HeaderXCorrelationID)
			}
			if requestID == "" {
				if id, err := uuid.NewV4(); err == nil {
					requestID = id.String()
				} else {
					requestID = fmt.Sprintf("req_%d", time.Now().UnixNano())
				}
			}

			w.Header().Set(HeaderXRequestID, requestID)
			ctx := contextutils.WithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
