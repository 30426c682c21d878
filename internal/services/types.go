// ===============================
// FILE: internal/services/types.go
// ===============================

package services

import (
	"io"
	"time"

	"wavehub/internal/models"
)

// blobCleanupTimeout bounds best-effort deletes of orphaned or replaced
// blobs; cleanup runs detached from the request context.
const blobCleanupTimeout = 15 * time.Second

// Page bounds for the list endpoints. The feed service carries its own
// configurable clamp.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// clampPagination applies the default page size when the caller did not
// name one and caps oversized requests. A zero limit must never reach a
// repository: the limit+1 overfetch there would truncate the page to
// nothing while still reporting a next page.
func clampPagination(params models.PaginationParams) models.PaginationParams {
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	return params
}

// ===============================
// POST TYPES
// ===============================

// AudioUpload is a raw audio blob handed to the post service together with
// its declared metadata. The service owns pushing it to the object store.
type AudioUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// CreatePostRequest carries everything needed to publish a post. Exactly
// one of Audio or AudioURL must be set: either a blob to upload or an
// already-stored content URL.
type CreatePostRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	Tags        []string `json:"tags,omitempty" validate:"max=10,dive,min=1,max=50"`
	Duration    float64  `json:"duration" validate:"min=0"`
	ChannelID   *int64   `json:"channel_id,omitempty"`

	Audio    *AudioUpload `json:"-"`
	AudioURL string       `json:"audio_url,omitempty" validate:"omitempty,url"`
}

// ===============================
// COMMENT TYPES
// ===============================

// AddCommentRequest carries a new comment for a post.
type AddCommentRequest struct {
	PostID int64  `json:"post_id" validate:"required"`
	Text   string `json:"text" validate:"required,min=1,max=2000"`
}

// AddCommentResult pairs the created comment with the parent post's
// counters as committed in the same transaction.
type AddCommentResult struct {
	Comment  *models.Comment      `json:"comment"`
	Counters *models.PostCounters `json:"counters"`
}

// ListCommentsRequest names a comment page.
type ListCommentsRequest struct {
	PostID     int64
	Pagination models.PaginationParams
	Descending bool
}

// ===============================
// ENGAGEMENT TYPES
// ===============================

// SetLikeResult reports the post-toggle state of a like relation.
type SetLikeResult struct {
	Changed  bool                 `json:"changed"`
	Liked    bool                 `json:"liked"`
	Likes    int                  `json:"likes"`
	Counters *models.PostCounters `json:"counters,omitempty"`
}

// ===============================
// USER TYPES
// ===============================

// ProvisionResult reports whether FetchOrProvision created the profile or
// found one already there.
type ProvisionResult struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// ImageUpload is a raw profile image blob.
type ImageUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// UpdateProfileRequest is the patchable subset of a profile. Nil fields
// stay untouched; a non-nil Image replaces the stored profile image.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,max=150"`
	Bio   *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Image *ImageUpload
}

// ===============================
// FEED TYPES
// ===============================

// FeedRequest names one feed page.
type FeedRequest struct {
	Kind       models.FeedKind
	Pagination models.PaginationParams
}

// FeedSubscription is a live feed attachment: an initial snapshot followed
// by incremental updates on Updates, in server write order per post. The
// channel is closed after Cancel or when the subscriber falls too far
// behind.
type FeedSubscription interface {
	Updates() <-chan *models.FeedUpdate
	Cancel()
}
