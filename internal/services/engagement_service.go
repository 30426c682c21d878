// ===============================
// FILE: internal/services/engagement_service.go
// ===============================

package services

import (
	"context"

	"wavehub/internal/events"
	"wavehub/internal/models"
	"wavehub/internal/repositories"

	"go.uber.org/zap"
)

// engagementService implements EngagementService on top of the conditional
// counter primitives in the engagement repository. Counter events are
// published synchronously after commit so subscribers see them in the
// order this process produced them.
type engagementService struct {
	engagementRepo repositories.EngagementRepository
	events         events.EventBus
	logger         *zap.Logger
}

// NewEngagementService creates a new engagement service.
func NewEngagementService(
	engagementRepo repositories.EngagementRepository,
	eventBus events.EventBus,
	logger *zap.Logger,
) EngagementService {
	return &engagementService{
		engagementRepo: engagementRepo,
		events:         eventBus,
		logger:         logger,
	}
}

// SetPostLike drives the viewer's like relation to the intended state.
// Duplicate and repeated requests land on Changed=false and publish
// nothing; only a real transition moves the aggregate.
func (s *engagementService) SetPostLike(ctx context.Context, identity *models.Identity, postID int64, liked bool) (*SetLikeResult, error) {
	if identity == nil {
		return nil, NewUnauthorizedError("authentication required")
	}
	if postID <= 0 {
		return nil, NewValidationError("post id is required", nil)
	}

	res, err := s.engagementRepo.SetPostLike(ctx, postID, identity.ID, liked)
	if err != nil {
		return nil, s.mapCounterError(err, "post")
	}

	if res.Changed && res.Counters != nil {
		counter := "likes"
		if err := s.events.Publish(ctx, events.NewPostCountersUpdatedEvent(
			postID, counter, res.Counters, identity.ID,
		)); err != nil {
			s.logger.Warn("failed to publish counter event",
				zap.Int64("post_id", postID), zap.Error(err))
		}
	}

	return &SetLikeResult{
		Changed:  res.Changed,
		Liked:    res.Liked,
		Likes:    res.Likes,
		Counters: res.Counters,
	}, nil
}

// SetCommentLike is the comment flavor of SetPostLike. Comment likes do
// not feed the live post stream, so no event is published.
func (s *engagementService) SetCommentLike(ctx context.Context, identity *models.Identity, commentID int64, liked bool) (*SetLikeResult, error) {
	if identity == nil {
		return nil, NewUnauthorizedError("authentication required")
	}
	if commentID <= 0 {
		return nil, NewValidationError("comment id is required", nil)
	}

	res, err := s.engagementRepo.SetCommentLike(ctx, commentID, identity.ID, liked)
	if err != nil {
		return nil, s.mapCounterError(err, "comment")
	}

	return &SetLikeResult{
		Changed: res.Changed,
		Liked:   res.Liked,
		Likes:   res.Likes,
	}, nil
}

// RecordPlay counts one playback. Anonymous playback counts too, so there
// is no identity requirement here.
func (s *engagementService) RecordPlay(ctx context.Context, postID int64) (*models.PostCounters, error) {
	if postID <= 0 {
		return nil, NewValidationError("post id is required", nil)
	}

	counters, err := s.engagementRepo.IncrementPlays(ctx, postID)
	if err != nil {
		return nil, s.mapCounterError(err, "post")
	}

	if err := s.events.Publish(ctx, events.NewPostCountersUpdatedEvent(
		postID, "plays", counters, "",
	)); err != nil {
		s.logger.Warn("failed to publish counter event",
			zap.Int64("post_id", postID), zap.Error(err))
	}

	return counters, nil
}

// mapCounterError translates repository failures into service errors.
func (s *engagementService) mapCounterError(err error, entity string) error {
	switch {
	case repositories.IsNotFound(err):
		return NewNotFoundError(entity + " not found")
	case repositories.IsRetryExhausted(err):
		return NewTransactionError("engagement update kept conflicting, try again", err)
	default:
		return NewInternalError("engagement update failed", err)
	}
}
