// ===============================
// FILE: internal/contextutils/context.go
// ===============================

package contextutils

import (
	"context"

	"wavehub/internal/models"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	identityKey  contextKey = "identity"
)

// GetRequestID returns the request ID or empty string.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID attaches a request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetIdentity returns the verified caller identity or nil for anonymous
// requests. Handlers thread this into services explicitly.
func GetIdentity(ctx context.Context) *models.Identity {
	if id, ok := ctx.Value(identityKey).(*models.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity attaches the verified caller identity.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetViewerID returns the caller's user ID, or empty string for anonymous
// requests. Repositories treat empty as "no viewer".
func GetViewerID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.ID
	}
	return ""
}
