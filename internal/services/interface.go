// ===============================
// FILE: internal/services/interface.go
// ===============================

package services

import (
	"context"

	"wavehub/internal/models"
)

// PostService publishes and serves audio posts.
type PostService interface {
	// CreatePost uploads the audio blob (when one is attached), snapshots
	// the author's display fields and inserts the post. If the insert
	// fails after an upload succeeded, the orphaned blob is deleted on a
	// best-effort basis.
	CreatePost(ctx context.Context, identity *models.Identity, req *CreatePostRequest) (*models.Post, error)

	// GetPost returns one post with viewer-relative fields resolved.
	GetPost(ctx context.Context, postID int64, viewerID string) (*models.Post, error)

	// ListPosts pages all posts, newest first.
	ListPosts(ctx context.Context, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error)

	// ListPostsByAuthor pages one author's posts, newest first.
	ListPostsByAuthor(ctx context.Context, authorID string, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error)
}

// EngagementService is the write side of the counter engine: idempotent
// like toggles and play counting.
type EngagementService interface {
	// SetPostLike drives the viewer's like relation on a post to the
	// intended state. Repeats of the same intent are no-ops.
	SetPostLike(ctx context.Context, identity *models.Identity, postID int64, liked bool) (*SetLikeResult, error)

	// SetCommentLike is SetPostLike for comments.
	SetCommentLike(ctx context.Context, identity *models.Identity, commentID int64, liked bool) (*SetLikeResult, error)

	// RecordPlay counts one playback. At-least-once.
	RecordPlay(ctx context.Context, postID int64) (*models.PostCounters, error)
}

// CommentService appends and serves comments.
type CommentService interface {
	// AddComment appends a comment and moves the parent post's comment
	// counter in the same transaction.
	AddComment(ctx context.Context, identity *models.Identity, req *AddCommentRequest) (*AddCommentResult, error)

	// ListComments pages a post's comments in chronological order.
	ListComments(ctx context.Context, req *ListCommentsRequest, viewerID string) (*models.PaginatedResponse[*models.Comment], error)
}

// UserService owns the profile lifecycle behind the identity provider.
type UserService interface {
	// FetchOrProvision returns the profile for the identity, creating it
	// on first contact. Safe under concurrent first requests: exactly one
	// profile per identity, and every caller gets it.
	FetchOrProvision(ctx context.Context, identity *models.Identity) (*ProvisionResult, error)

	// GetUser returns a profile by ID.
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// GetUserByUsername returns a profile by username.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// UpdateProfile patches the caller's profile. A new image is uploaded
	// before the record is touched; on success the replaced blob is
	// deleted best-effort.
	UpdateProfile(ctx context.Context, identity *models.Identity, req *UpdateProfileRequest) (*models.User, error)
}

// FeedService builds feed pages and serves live subscriptions.
type FeedService interface {
	// GetFeed returns one page of the named feed.
	GetFeed(ctx context.Context, req *FeedRequest, viewerID string) (*models.PaginatedResponse[*models.Post], error)

	// Subscribe attaches a live subscriber to a feed. The subscription
	// starts with a snapshot frame and then streams diffs until Cancel.
	Subscribe(ctx context.Context, kind models.FeedKind, viewerID string) (FeedSubscription, error)
}

// ChannelService serves the read-mostly channel catalog.
type ChannelService interface {
	ListChannels(ctx context.Context, viewerID string) ([]*models.Channel, error)
	GetChannel(ctx context.Context, channelID int64, viewerID string) (*models.Channel, error)

	// SetSubscription toggles the caller's membership in a channel.
	SetSubscription(ctx context.Context, identity *models.Identity, channelID int64, subscribed bool) (changed bool, err error)
}
