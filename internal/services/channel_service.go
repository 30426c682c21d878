// ===============================
// FILE: internal/services/channel_service.go
// ===============================

package services

import (
	"context"
	"time"

	"wavehub/internal/cache"
	"wavehub/internal/models"
	"wavehub/internal/repositories"

	"go.uber.org/zap"
)

const (
	channelListCacheKey = "channels:list:v1"
	channelListCacheTTL = 5 * time.Minute
)

// channelService implements ChannelService over the seeded catalog.
type channelService struct {
	channelRepo repositories.ChannelRepository
	cache       cache.Cache
	logger      *zap.Logger
}

// NewChannelService creates a new channel service.
func NewChannelService(channelRepo repositories.ChannelRepository, cacheClient cache.Cache, logger *zap.Logger) ChannelService {
	return &channelService{
		channelRepo: channelRepo,
		cache:       cacheClient,
		logger:      logger,
	}
}

// ListChannels returns the catalog. The anonymous listing is cached; a
// signed-in viewer's listing carries their subscription flags and is
// served straight from the repository.
func (s *channelService) ListChannels(ctx context.Context, viewerID string) ([]*models.Channel, error) {
	if viewerID == "" {
		var cached []*models.Channel
		if hit, err := s.cache.Get(ctx, channelListCacheKey, &cached); err != nil {
			s.logger.Warn("channel cache read failed", zap.Error(err))
		} else if hit {
			return cached, nil
		}
	}

	channels, err := s.channelRepo.List(ctx, viewerID)
	if err != nil {
		return nil, NewInternalError("failed to list channels", err)
	}

	if viewerID == "" {
		if err := s.cache.Set(ctx, channelListCacheKey, channels, channelListCacheTTL); err != nil {
			s.logger.Warn("channel cache write failed", zap.Error(err))
		}
	}
	return channels, nil
}

// GetChannel returns one channel with the viewer's subscription resolved.
func (s *channelService) GetChannel(ctx context.Context, channelID int64, viewerID string) (*models.Channel, error) {
	if channelID <= 0 {
		return nil, NewValidationError("channel id is required", nil)
	}
	channel, err := s.channelRepo.GetByID(ctx, channelID, viewerID)
	if err != nil {
		return nil, NewInternalError("failed to get channel", err)
	}
	if channel == nil {
		return nil, NewNotFoundError("channel not found")
	}
	return channel, nil
}

// SetSubscription toggles the caller's membership. Idempotent: repeating
// the same intent reports changed=false.
func (s *channelService) SetSubscription(ctx context.Context, identity *models.Identity, channelID int64, subscribed bool) (bool, error) {
	if identity == nil {
		return false, NewUnauthorizedError("authentication required")
	}
	if channelID <= 0 {
		return false, NewValidationError("channel id is required", nil)
	}

	changed, err := s.channelRepo.SetSubscription(ctx, channelID, identity.ID, subscribed)
	if err != nil {
		if repositories.IsNotFound(err) {
			return false, NewNotFoundError("channel not found")
		}
		return false, NewInternalError("failed to update subscription", err)
	}

	if changed {
		if err := s.cache.Delete(ctx, channelListCacheKey); err != nil {
			s.logger.Warn("channel cache invalidation failed", zap.Error(err))
		}
		s.logger.Debug("channel subscription changed",
			zap.Int64("channel_id", channelID),
			zap.String("user_id", identity.ID),
			zap.Bool("subscribed", subscribed))
	}
	return changed, nil
}
