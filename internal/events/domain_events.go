package events

import "wavehub/internal/models"

// Event type names published by the services.
const (
	EventPostCreated     = "post.created"
	EventPostCounters    = "post.counters_updated"
	EventCommentCreated  = "comment.created"
	EventUserProvisioned = "user.provisioned"
	EventFileUploaded    = "file.uploaded"
)

// PostCreatedEvent fires when a post is published.
type PostCreatedEvent struct {
	BaseEvent
	PostID   int64  `json:"post_id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
}

// NewPostCreatedEvent builds a post.created event.
func NewPostCreatedEvent(postID int64, authorID, title string) *PostCreatedEvent {
	return &PostCreatedEvent{
		BaseEvent: newBaseEvent(EventPostCreated, authorID),
		PostID:    postID,
		AuthorID:  authorID,
		Title:     title,
	}
}

// PostCountersUpdatedEvent fires after the engagement engine commits a
// counter change. Likes/Plays/Comments carry the authoritative values and
// Version their commit order for that post.
type PostCountersUpdatedEvent struct {
	BaseEvent
	PostID   int64  `json:"post_id"`
	Counter  string `json:"counter"` // "likes", "plays" or "comments"
	Likes    int    `json:"likes"`
	Plays    int    `json:"plays"`
	Comments int    `json:"comments"`
	Version  int64  `json:"version"`
}

// NewPostCountersUpdatedEvent builds a post.counters_updated event.
func NewPostCountersUpdatedEvent(postID int64, counter string, counters *models.PostCounters, actorID string) *PostCountersUpdatedEvent {
	return &PostCountersUpdatedEvent{
		BaseEvent: newBaseEvent(EventPostCounters, actorID),
		PostID:    postID,
		Counter:   counter,
		Likes:     counters.Likes,
		Plays:     counters.Plays,
		Comments:  counters.Comments,
		Version:   counters.Version,
	}
}

// CommentCreatedEvent fires when a comment is appended to a post.
type CommentCreatedEvent struct {
	BaseEvent
	CommentID int64  `json:"comment_id"`
	PostID    int64  `json:"post_id"`
	AuthorID  string `json:"author_id"`
}

// NewCommentCreatedEvent builds a comment.created event.
func NewCommentCreatedEvent(commentID, postID int64, authorID string) *CommentCreatedEvent {
	return &CommentCreatedEvent{
		BaseEvent: newBaseEvent(EventCommentCreated, authorID),
		CommentID: commentID,
		PostID:    postID,
		AuthorID:  authorID,
	}
}

// UserProvisionedEvent fires the first time an identity gets a profile.
type UserProvisionedEvent struct {
	BaseEvent
	Username string `json:"username"`
	Email    string `json:"email"`
}

// NewUserProvisionedEvent builds a user.provisioned event.
func NewUserProvisionedEvent(userID, username, email string) *UserProvisionedEvent {
	return &UserProvisionedEvent{
		BaseEvent: newBaseEvent(EventUserProvisioned, userID),
		Username:  username,
		Email:     email,
	}
}

// FileUploadedEvent fires after a blob lands in the object store.
type FileUploadedEvent struct {
	BaseEvent
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Bytes    int64  `json:"bytes"`
}

// NewFileUploadedEvent builds a file.uploaded event.
func NewFileUploadedEvent(kind, url, publicID string, bytes int64, userID string) *FileUploadedEvent {
	return &FileUploadedEvent{
		BaseEvent: newBaseEvent(EventFileUploaded, userID),
		Kind:      kind,
		URL:       url,
		PublicID:  publicID,
		Bytes:     bytes,
	}
}
