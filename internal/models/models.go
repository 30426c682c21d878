// ===============================
// FILE: internal/models/models.go
// ===============================

package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
)

// ===============================
// CORE ENTITIES
// ===============================

// Identity is the verified authenticated identity handed to the service by
// the external identity provider. Token validation happens at the edge; by
// the time an Identity reaches a service it is trusted.
type Identity struct {
	ID          string `json:"id" validate:"required"`
	Email       string `json:"email" validate:"required,email,max=320"`
	DisplayName string `json:"display_name" validate:"max=150"`
	PhotoURL    string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// User represents a listener/creator profile. The ID is the identity
// provider's stable subject key, set exactly once at provisioning time.
type User struct {
	// Primary fields
	ID       string `json:"id" db:"id"`
	Username string `json:"username" db:"username" validate:"required,min=3,max=50"`
	Name     string `json:"name" db:"name" validate:"max=150"`
	Email    string `json:"email" db:"email" validate:"required,email,max=320"`

	// Profile information
	Bio *string `json:"bio,omitempty" db:"bio" validate:"omitempty,max=1000"`

	// Media (object store)
	ProfileImageURL      *string `json:"profile_image_url,omitempty" db:"profile_image_url"`
	ProfileImagePublicID *string `json:"-" db:"profile_image_public_id"`

	// Social aggregates
	Followers int `json:"followers" db:"followers_count"`
	Following int `json:"following" db:"following_count"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Post represents a published audio post. Author display fields are a
// denormalized snapshot taken at publish time; later profile edits do not
// rewrite historical posts.
type Post struct {
	// Core fields
	ID          int64   `json:"id" db:"id"`
	Title       string  `json:"title" db:"title" validate:"required,min=1,max=255"`
	Description *string `json:"description,omitempty" db:"description" validate:"omitempty,max=5000"`

	// Media (object store, immutable after creation)
	AudioURL      string  `json:"audio_url" db:"audio_url" validate:"required,url"`
	AudioPublicID *string `json:"-" db:"audio_public_id"`
	Duration      float64 `json:"duration" db:"duration" validate:"min=0"`

	// Author snapshot (denormalized at creation)
	AuthorID              string  `json:"author_id" db:"author_id"`
	AuthorName            string  `json:"author_name" db:"author_name"`
	AuthorUsername        string  `json:"author_username" db:"author_username"`
	AuthorProfileImageURL *string `json:"author_profile_image_url,omitempty" db:"author_profile_image_url"`

	// Aggregate counters, maintained by the engagement engine
	Likes    int `json:"likes" db:"likes_count"`
	Plays    int `json:"plays" db:"plays_count"`
	Comments int `json:"comments" db:"comments_count"`

	// Metadata
	Tags StringArray `json:"tags" db:"tags"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Viewer-specific fields (computed from the likes relation, never stored)
	IsLiked bool `json:"is_liked" db:"-"`
}

// Comment represents an append-only comment on a post.
type Comment struct {
	// Core fields
	ID     int64  `json:"id" db:"id"`
	PostID int64  `json:"post_id" db:"post_id" validate:"required"`
	Text   string `json:"text" db:"text" validate:"required,min=1,max=2000"`

	// Author snapshot (denormalized at creation)
	AuthorID              string  `json:"author_id" db:"author_id"`
	AuthorName            string  `json:"author_name" db:"author_name"`
	AuthorUsername        string  `json:"author_username" db:"author_username"`
	AuthorProfileImageURL *string `json:"author_profile_image_url,omitempty" db:"author_profile_image_url"`

	// Aggregates
	Likes int `json:"likes" db:"likes_count"`

	// Timestamps
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Viewer-specific fields
	IsLiked bool `json:"is_liked" db:"-"`
}

// Channel is a read-mostly categorical grouping of posts, seeded at
// migration time.
type Channel struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name" validate:"required,max=100"`
	Description *string   `json:"description,omitempty" db:"description"`
	IconName    *string   `json:"icon_name,omitempty" db:"icon_name" validate:"omitempty,max=100"`
	IsNSFW      bool      `json:"is_nsfw" db:"is_nsfw"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// Computed fields (not in DB)
	PostsCount       int     `json:"posts_count" db:"-"`
	SubscribersCount int     `json:"subscribers_count" db:"-"`
	IsSubscribed     bool    `json:"is_subscribed" db:"-"`
	PostIDs          []int64 `json:"post_ids,omitempty" db:"-"`
}

// ===============================
// FEED TYPES
// ===============================

// FeedKind enumerates the feed variants served by the feed service.
type FeedKind string

const (
	FeedRecent    FeedKind = "recent"
	FeedTrending  FeedKind = "trending"
	FeedFollowing FeedKind = "following"
)

// Valid reports whether the feed kind is one the service knows how to build.
func (k FeedKind) Valid() bool {
	switch k {
	case FeedRecent, FeedTrending, FeedFollowing:
		return true
	}
	return false
}

// FeedUpdateType enumerates the frame kinds delivered to feed subscribers.
type FeedUpdateType string

const (
	FeedUpdateSnapshot FeedUpdateType = "snapshot"
	FeedUpdateCreated  FeedUpdateType = "created"
	FeedUpdateCounters FeedUpdateType = "counters"
)

// FeedUpdate is one frame delivered to a live feed subscriber: an initial
// snapshot followed by incremental diffs, in server write order per post.
type FeedUpdate struct {
	Type     FeedUpdateType `json:"type"`
	Feed     FeedKind       `json:"feed"`
	Posts    []*Post        `json:"posts,omitempty"`    // snapshot only
	Post     *Post          `json:"post,omitempty"`     // created only
	Counters *PostCounters  `json:"counters,omitempty"` // counters only
	Sequence uint64         `json:"sequence"`
}

// PostCounters is the aggregate-counter projection of a post, pushed to
// subscribers when the engagement engine commits a change. Version is
// bumped inside the same transaction as every counter move, so it totals
// the post's counter writes in server commit order.
type PostCounters struct {
	PostID   int64 `json:"post_id"`
	Likes    int   `json:"likes"`
	Plays    int   `json:"plays"`
	Comments int   `json:"comments"`
	Version  int64 `json:"version"`
}

// ===============================
// PAGINATION & QUERY HELPERS
// ===============================

// PaginationParams represents cursor/limit pagination parameters.
type PaginationParams struct {
	Limit  int    `json:"limit" validate:"min=1,max=100"`
	Cursor string `json:"cursor,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	ItemsPerPage int    `json:"items_per_page"`
	HasNext      bool   `json:"has_next"`
	NextCursor   string `json:"next_cursor,omitempty"`
}

// ===============================
// CUSTOM TYPES
// ===============================

// StringArray handles PostgreSQL array columns, delegating the wire format
// to lib/pq so elements with spaces, commas or quotes survive the round
// trip.
type StringArray []string

// Scan implements sql.Scanner. NULL scans as an empty, non-nil slice so
// the JSON rendering stays [].
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}
	return (*pq.StringArray)(s).Scan(value)
}

// Value implements driver.Valuer
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "{}", nil
	}
	return pq.StringArray(s).Value()
}
