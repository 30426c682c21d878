// ===============================
// FILE: internal/services/comment_service.go
// ===============================

package services

import (
	"context"
	"strings"

	"wavehub/internal/events"
	"wavehub/internal/models"
	"wavehub/internal/repositories"

	"go.uber.org/zap"
)

// commentService implements CommentService.
type commentService struct {
	commentRepo repositories.CommentRepository
	userService UserService
	events      events.EventBus
	logger      *zap.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(
	commentRepo repositories.CommentRepository,
	userService UserService,
	eventBus events.EventBus,
	logger *zap.Logger,
) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		userService: userService,
		events:      eventBus,
		logger:      logger,
	}
}

// AddComment appends a comment. The insert and the parent post's comment
// counter commit in one transaction, so a successful return means the
// counter moved exactly once.
func (s *commentService) AddComment(ctx context.Context, identity *models.Identity, req *AddCommentRequest) (*AddCommentResult, error) {
	if identity == nil {
		return nil, NewUnauthorizedError("authentication required")
	}
	if req.PostID <= 0 {
		return nil, NewValidationError("post id is required", nil)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, NewValidationError("comment text must not be blank", nil)
	}
	if len(text) > 2000 {
		return nil, NewValidationError("comment text exceeds 2000 characters", nil)
	}

	provisioned, err := s.userService.FetchOrProvision(ctx, identity)
	if err != nil {
		return nil, err
	}
	author := provisioned.User

	comment := &models.Comment{
		PostID:                req.PostID,
		Text:                  text,
		AuthorID:              author.ID,
		AuthorName:            author.Name,
		AuthorUsername:        author.Username,
		AuthorProfileImageURL: author.ProfileImageURL,
	}

	counters, err := s.commentRepo.Create(ctx, comment)
	if err != nil {
		switch {
		case repositories.IsNotFound(err):
			return nil, NewNotFoundError("post not found")
		case repositories.IsRetryExhausted(err):
			return nil, NewTransactionError("comment kept conflicting, try again", err)
		default:
			return nil, NewInternalError("failed to add comment", err)
		}
	}

	if err := s.events.Publish(ctx, events.NewCommentCreatedEvent(comment.ID, comment.PostID, author.ID)); err != nil {
		s.logger.Warn("failed to publish comment event",
			zap.Int64("comment_id", comment.ID), zap.Error(err))
	}
	if err := s.events.Publish(ctx, events.NewPostCountersUpdatedEvent(
		comment.PostID, "comments", counters, author.ID,
	)); err != nil {
		s.logger.Warn("failed to publish counter event",
			zap.Int64("post_id", comment.PostID), zap.Error(err))
	}

	return &AddCommentResult{Comment: comment, Counters: counters}, nil
}

// ListComments pages a post's comments in chronological order.
func (s *commentService) ListComments(ctx context.Context, req *ListCommentsRequest, viewerID string) (*models.PaginatedResponse[*models.Comment], error) {
	if req.PostID <= 0 {
		return nil, NewValidationError("post id is required", nil)
	}
	page, err := s.commentRepo.ListByPost(ctx, req.PostID, clampPagination(req.Pagination), req.Descending, viewerID)
	if err != nil {
		if repositories.IsBadCursor(err) {
			return nil, NewValidationError("invalid pagination cursor", err)
		}
		return nil, NewInternalError("failed to list comments", err)
	}
	return page, nil
}
