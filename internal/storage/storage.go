// Package storage is the object-store boundary: audio blobs and profile
// images go in, stable content URLs come out. Callers never see a partially
// written blob; an upload either returns a retrievable URL or an error.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Kind classifies an upload for provider-side handling.
type Kind string

const (
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// PutRequest describes a blob upload.
type PutRequest struct {
	Body        io.Reader
	Size        int64
	ContentType string
	PathHint    string // folder/name hint, not a guarantee
	Kind        Kind
}

// Object is the result of a successful upload.
type Object struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Bytes    int64  `json:"bytes"`
	Format   string `json:"format,omitempty"`
}

// ObjectStore stores blobs and returns stable content URLs. Blob lifetime
// is owned here; records reference blobs by URL only.
type ObjectStore interface {
	Put(ctx context.Context, req *PutRequest) (*Object, error)
	Delete(ctx context.Context, publicID string) error
}

// ===============================
// ERRORS
// ===============================

// ErrNotConfigured is returned when no storage backend is available.
var ErrNotConfigured = errors.New("object store is not configured")

// Error is a storage failure with the failed operation and reason attached.
type Error struct {
	Op     string // "put" or "delete"
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("storage %s failed: %s", e.Op, e.Reason)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a storage error.
func NewError(op, reason string, err error) *Error {
	return &Error{Op: op, Reason: reason, Err: err}
}

// IsStorageError reports whether err is a storage failure.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// disabledStore rejects every operation. Used outside production when no
// provider is configured, so the rest of the service still comes up.
type disabledStore struct{}

// NewDisabledStore returns an ObjectStore that fails every call with a
// not-configured storage error.
func NewDisabledStore() ObjectStore { return disabledStore{} }

func (disabledStore) Put(ctx context.Context, req *PutRequest) (*Object, error) {
	return nil, NewError("put", "no provider configured", ErrNotConfigured)
}

func (disabledStore) Delete(ctx context.Context, publicID string) error {
	return NewError("delete", "no provider configured", ErrNotConfigured)
}
