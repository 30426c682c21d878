// ===============================
// FILE: internal/services/post_service.go
// ===============================

package services

import (
	"context"
	"fmt"
	"strings"

	"wavehub/internal/events"
	"wavehub/internal/models"
	"wavehub/internal/repositories"
	"wavehub/internal/storage"
	"wavehub/internal/validation"

	"go.uber.org/zap"
)

// postService implements PostService.
type postService struct {
	postRepo    repositories.PostRepository
	channelRepo repositories.ChannelRepository
	userService UserService
	store       storage.ObjectStore
	events      events.EventBus
	logger      *zap.Logger
}

// NewPostService creates a new post service.
func NewPostService(
	postRepo repositories.PostRepository,
	channelRepo repositories.ChannelRepository,
	userService UserService,
	store storage.ObjectStore,
	eventBus events.EventBus,
	logger *zap.Logger,
) PostService {
	return &postService{
		postRepo:    postRepo,
		channelRepo: channelRepo,
		userService: userService,
		store:       store,
		events:      eventBus,
		logger:      logger,
	}
}

// CreatePost uploads the audio (when a blob is attached), snapshots the
// author and inserts the post. Upload-then-insert: a failed insert leaves
// an orphaned blob, which is deleted best-effort.
func (s *postService) CreatePost(ctx context.Context, identity *models.Identity, req *CreatePostRequest) (*models.Post, error) {
	if identity == nil {
		return nil, NewUnauthorizedError("authentication required")
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError("invalid post data", err)
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, NewValidationError("title must not be blank", nil)
	}
	if (req.Audio == nil) == (req.AudioURL == "") {
		return nil, NewValidationError("exactly one of an audio upload or an audio URL is required", nil)
	}
	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	// Provisioning first: the author snapshot comes from the profile, not
	// from the raw identity.
	provisioned, err := s.userService.FetchOrProvision(ctx, identity)
	if err != nil {
		return nil, err
	}
	author := provisioned.User

	audioURL := req.AudioURL
	var audioPublicID *string
	if req.Audio != nil {
		obj, err := s.store.Put(ctx, &storage.PutRequest{
			Body:        req.Audio.Body,
			Size:        req.Audio.Size,
			ContentType: req.Audio.ContentType,
			PathHint:    fmt.Sprintf("posts/%s/%s", author.ID, req.Audio.Filename),
			Kind:        storage.KindAudio,
		})
		if err != nil {
			if storage.IsStorageError(err) {
				return nil, NewStorageError("audio upload failed", err)
			}
			return nil, NewValidationError("audio rejected", err)
		}
		audioURL = obj.URL
		audioPublicID = &obj.PublicID

		if pubErr := s.events.PublishAsync(ctx, events.NewFileUploadedEvent(
			string(storage.KindAudio), obj.URL, obj.PublicID, obj.Bytes, author.ID,
		)); pubErr != nil {
			s.logger.Warn("failed to publish upload event", zap.Error(pubErr))
		}
	}

	post := &models.Post{
		Title:                 req.Title,
		Description:           req.Description,
		AudioURL:              audioURL,
		AudioPublicID:         audioPublicID,
		Duration:              req.Duration,
		AuthorID:              author.ID,
		AuthorName:            author.Name,
		AuthorUsername:        author.Username,
		AuthorProfileImageURL: author.ProfileImageURL,
		Tags:                  tags,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.cleanupBlob(audioPublicID, "post insert failed")
		return nil, NewInternalError("failed to create post", err)
	}

	if req.ChannelID != nil {
		if err := s.channelRepo.AttachPost(ctx, *req.ChannelID, post.ID); err != nil {
			if repositories.IsNotFound(err) {
				s.logger.Warn("post created but channel not found",
					zap.Int64("post_id", post.ID),
					zap.Int64("channel_id", *req.ChannelID))
			} else {
				s.logger.Error("failed to attach post to channel",
					zap.Int64("post_id", post.ID),
					zap.Int64("channel_id", *req.ChannelID),
					zap.Error(err))
			}
		}
	}

	if err := s.events.Publish(ctx, events.NewPostCreatedEvent(post.ID, author.ID, post.Title)); err != nil {
		s.logger.Warn("failed to publish post created event",
			zap.Int64("post_id", post.ID), zap.Error(err))
	}

	s.logger.Info("post created",
		zap.Int64("post_id", post.ID),
		zap.String("author_id", author.ID))
	return post, nil
}

// GetPost returns one post with the viewer's like state resolved.
func (s *postService) GetPost(ctx context.Context, postID int64, viewerID string) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, NewInternalError("failed to get post", err)
	}
	if post == nil {
		return nil, NewNotFoundError("post not found")
	}
	return post, nil
}

// ListPosts pages all posts, newest first.
func (s *postService) ListPosts(ctx context.Context, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	page, err := s.postRepo.ListRecent(ctx, clampPagination(params), viewerID)
	if err != nil {
		if repositories.IsBadCursor(err) {
			return nil, NewValidationError("invalid pagination cursor", err)
		}
		return nil, NewInternalError("failed to list posts", err)
	}
	return page, nil
}

// ListPostsByAuthor pages one author's posts, newest first.
func (s *postService) ListPostsByAuthor(ctx context.Context, authorID string, params models.PaginationParams, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	if authorID == "" {
		return nil, NewValidationError("author id is required", nil)
	}
	page, err := s.postRepo.ListByAuthor(ctx, authorID, clampPagination(params), viewerID)
	if err != nil {
		if repositories.IsBadCursor(err) {
			return nil, NewValidationError("invalid pagination cursor", err)
		}
		return nil, NewInternalError("failed to list posts", err)
	}
	return page, nil
}

// cleanupBlob deletes an uploaded blob after a downstream failure. Failures
// here are logged, never surfaced.
func (s *postService) cleanupBlob(publicID *string, reason string) {
	if publicID == nil || *publicID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, *publicID); err != nil {
		s.logger.Warn("orphaned blob cleanup failed",
			zap.String("public_id", *publicID),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// normalizeTags trims tags and drops blank entries. Order, case and
// duplicates are the client's to choose; the list is stored as given.
func normalizeTags(raw []string) (models.StringArray, error) {
	if len(raw) == 0 {
		return models.StringArray{}, nil
	}
	tags := make(models.StringArray, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if len(t) > 50 {
			return nil, NewValidationError(fmt.Sprintf("tag %q exceeds 50 characters", t), nil)
		}
		tags = append(tags, t)
	}
	if len(tags) > 10 {
		return nil, NewValidationError("at most 10 tags are allowed", nil)
	}
	return tags, nil
}
