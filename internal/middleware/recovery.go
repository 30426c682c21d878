// ===============================
// FILE: internal/middleware/recovery.go
// ===============================

package middleware

import (
	"net/http"
	"runtime/debug"

	"wavehub/internal/contextutils"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"go.uber.org/zap"
)

// Recovery turns handler panics into masked 500 responses. The stack goes
// to the log, never to the client.
func Recovery(logger *zap.Logger, writer *response.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.String("request_id", contextutils.GetRequestID(r.Context())),
						zap.String("path", r.URL.Path),
						zap.Any("panic", rec),
						zap.ByteString("stack", debug.Stack()))
					writer.Error(w, r, services.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
