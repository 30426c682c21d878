// ===============================
// FILE: internal/repositories/interfaces.go
// ===============================

package repositories

import (
	"context"
	"database/sql"

	"wavehub/internal/models"
)

// PostRepository persists and queries audio posts. Counter columns are
// never written here; they belong to EngagementRepository.
type PostRepository interface {
	// Create inserts a post and fills in its ID and CreatedAt.
	Create(ctx context.Context, post *models.Post) error

	// GetByID returns the post or nil when absent. A non-empty viewerID
	// resolves the viewer-relative IsLiked flag.
	GetByID(ctx context.Context, id int64, viewerID string) (*models.Post, error)

	// ListRecent returns posts ordered by creation time descending with a
	// keyset cursor. Pages are disjoint and stable under concurrent inserts.
	ListRecent(ctx context.Context, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error)

	// ListTrending returns posts ordered by likes descending, ties broken
	// by creation time descending.
	ListTrending(ctx context.Context, limit int, viewerID string) ([]*models.Post, error)

	// ListByAuthor pages one author's posts with the ListRecent contract.
	ListByAuthor(ctx context.Context, authorID string, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error)
}

// LikeResult reports the outcome of an idempotent like toggle.
type LikeResult struct {
	Changed  bool                 // false when the toggle was a no-op (retry/duplicate)
	Liked    bool                 // viewer's state after the toggle
	Likes    int                  // aggregate likes of the toggled entity after commit
	Counters *models.PostCounters // full post counters when the entity is a post
}

// EngagementRepository is the counter engine's storage primitive: every
// aggregate-counter mutation in the system goes through one of these
// conditional, transaction-scoped operations.
type EngagementRepository interface {
	// SetPostLike toggles the (post, viewer) like relation to the intended
	// state and adjusts the aggregate only when the relation actually
	// changed. Idempotent per (postID, viewerID, liked).
	SetPostLike(ctx context.Context, postID int64, viewerID string, liked bool) (*LikeResult, error)

	// SetCommentLike is SetPostLike for the (comment, viewer) relation.
	SetCommentLike(ctx context.Context, commentID int64, viewerID string, liked bool) (*LikeResult, error)

	// IncrementPlays bumps the play counter. At-least-once semantics;
	// retried requests may overcount.
	IncrementPlays(ctx context.Context, postID int64) (*models.PostCounters, error)

	// IncrementCommentsTx bumps the comment counter inside the caller's
	// transaction so a comment insert and its counter move together.
	IncrementCommentsTx(ctx context.Context, tx *sql.Tx, postID int64) (*models.PostCounters, error)
}

// CommentRepository persists append-only comments.
type CommentRepository interface {
	// Create inserts a comment and increments the parent post's comment
	// aggregate in the same transaction, exactly once. Returns the
	// counters committed alongside the comment.
	Create(ctx context.Context, comment *models.Comment) (*models.PostCounters, error)

	// GetByID returns the comment or nil when absent.
	GetByID(ctx context.Context, id int64, viewerID string) (*models.Comment, error)

	// ListByPost pages a post's comments in chronological order;
	// descending controls the direction.
	ListByPost(ctx context.Context, postID int64, params models.PaginationParams, descending bool, viewerID string) (*models.PaginatedResponse[*models.Comment], error)
}

// UserRepository persists profiles keyed by the identity provider's
// stable subject key.
type UserRepository interface {
	// Insert conditionally creates the profile; returns false when a row
	// for the same ID already exists (concurrent provisioning).
	Insert(ctx context.Context, user *models.User) (created bool, err error)

	// GetByID returns the profile or nil when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByUsername returns the profile or nil when absent.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// UsernameExists reports whether a username is taken.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// Update applies a single-statement patch of the mutable fields and
	// returns the updated profile.
	Update(ctx context.Context, id string, params UpdateUserParams) (*models.User, error)
}

// UpdateUserParams is the patchable subset of a profile. Nil fields are
// left untouched.
type UpdateUserParams struct {
	Name                 *string
	Bio                  *string
	ProfileImageURL      *string
	ProfileImagePublicID *string
}

// ChannelRepository serves the read-mostly channel catalog.
type ChannelRepository interface {
	List(ctx context.Context, viewerID string) ([]*models.Channel, error)
	GetByID(ctx context.Context, id int64, viewerID string) (*models.Channel, error)

	// SetSubscription toggles the (channel, user) subscription relation;
	// idempotent like the engagement toggles.
	SetSubscription(ctx context.Context, channelID int64, userID string, subscribed bool) (changed bool, err error)

	// AttachPost links a post into a channel; duplicate links are no-ops.
	AttachPost(ctx context.Context, channelID, postID int64) error
}
