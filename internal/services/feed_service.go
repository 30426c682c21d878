// ===============================
// FILE: internal/services/feed_service.go
// ===============================

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wavehub/internal/cache"
	"wavehub/internal/config"
	"wavehub/internal/events"
	"wavehub/internal/models"
	"wavehub/internal/repositories"

	"go.uber.org/zap"
)

const (
	trendingCacheKey = "feed:trending:v1"
	trendingCacheTTL = 30 * time.Second
)

// feedService implements FeedService. It composes post repository queries
// into the feed variants and runs the live-subscription hub fed by the
// event bus.
type feedService struct {
	postRepo repositories.PostRepository
	cache    cache.Cache
	events   events.EventBus
	cfg      config.FeedConfig
	logger   *zap.Logger

	mu       sync.Mutex
	subs     map[uint64]*feedSubscription
	nextSub  uint64
	sequence uint64

	// lastVersion tracks the highest counter version fanned out per post.
	// Counter commits can surface on the bus out of order across
	// goroutines; versions let the hub drop the stale ones so every
	// subscriber sees each post's counters in server commit order.
	lastVersion map[int64]int64
}

// NewFeedService creates the feed service and registers its event
// handlers on the bus.
func NewFeedService(
	postRepo repositories.PostRepository,
	cacheClient cache.Cache,
	eventBus events.EventBus,
	cfg config.FeedConfig,
	logger *zap.Logger,
) (FeedService, error) {
	s := &feedService{
		postRepo:    postRepo,
		cache:       cacheClient,
		events:      eventBus,
		cfg:         cfg,
		logger:      logger,
		subs:        make(map[uint64]*feedSubscription),
		lastVersion: make(map[int64]int64),
	}

	if err := eventBus.Subscribe(events.EventPostCreated, events.EventHandlerFunc{
		ID:   "feed_service.post_created",
		Func: s.handlePostCreated,
	}); err != nil {
		return nil, fmt.Errorf("subscribe post created: %w", err)
	}
	if err := eventBus.Subscribe(events.EventPostCounters, events.EventHandlerFunc{
		ID:   "feed_service.post_counters",
		Func: s.handlePostCounters,
	}); err != nil {
		return nil, fmt.Errorf("subscribe post counters: %w", err)
	}

	return s, nil
}

// ===============================
// FEED QUERIES
// ===============================

// GetFeed returns one page of the named feed. The "following" feed serves
// recent until a follow graph exists; the distinct name is kept so clients
// do not have to change when it lands.
func (s *feedService) GetFeed(ctx context.Context, req *FeedRequest, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	if !req.Kind.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown feed %q", req.Kind), nil)
	}
	params := s.clampPagination(req.Pagination)

	switch req.Kind {
	case models.FeedTrending:
		return s.trendingFeed(ctx, params.Limit, viewerID)
	default: // recent, and following until a follow graph exists
		page, err := s.postRepo.ListRecent(ctx, params, viewerID)
		if err != nil {
			if repositories.IsBadCursor(err) {
				return nil, NewValidationError("invalid pagination cursor", err)
			}
			return nil, NewInternalError("failed to build feed", err)
		}
		return page, nil
	}
}

// trendingFeed serves the likes-ordered feed, from cache when the viewer
// is anonymous (viewer-relative fields make cached pages per-viewer
// otherwise).
func (s *feedService) trendingFeed(ctx context.Context, limit int, viewerID string) (*models.PaginatedResponse[*models.Post], error) {
	cacheable := s.cfg.TrendingCacheEnable && viewerID == "" && limit == s.cfg.DefaultLimit

	if cacheable {
		var cached []*models.Post
		if hit, err := s.cache.Get(ctx, trendingCacheKey, &cached); err != nil {
			s.logger.Warn("trending cache read failed", zap.Error(err))
		} else if hit {
			return trendingPage(cached, limit), nil
		}
	}

	posts, err := s.postRepo.ListTrending(ctx, limit, viewerID)
	if err != nil {
		return nil, NewInternalError("failed to build feed", err)
	}

	if cacheable {
		if err := s.cache.Set(ctx, trendingCacheKey, posts, trendingCacheTTL); err != nil {
			s.logger.Warn("trending cache write failed", zap.Error(err))
		}
	}
	return trendingPage(posts, limit), nil
}

func trendingPage(posts []*models.Post, limit int) *models.PaginatedResponse[*models.Post] {
	return &models.PaginatedResponse[*models.Post]{
		Data: posts,
		Pagination: models.PaginationMeta{
			ItemsPerPage: limit,
			HasNext:      false,
		},
	}
}

func (s *feedService) clampPagination(params models.PaginationParams) models.PaginationParams {
	if params.Limit <= 0 {
		params.Limit = s.cfg.DefaultLimit
	}
	if params.Limit > s.cfg.MaxLimit {
		params.Limit = s.cfg.MaxLimit
	}
	return params
}

// ===============================
// LIVE SUBSCRIPTIONS
// ===============================

// feedSubscription is one live attachment. Updates are pushed into a
// buffered channel owned by the hub; the subscriber only reads and
// cancels.
type feedSubscription struct {
	id       uint64
	kind     models.FeedKind
	viewerID string
	ch       chan *models.FeedUpdate
	hub      *feedService

	cancelOnce sync.Once
}

// Updates returns the subscriber's frame channel. Closed after Cancel or
// after the hub drops a subscriber that stopped draining.
func (sub *feedSubscription) Updates() <-chan *models.FeedUpdate { return sub.ch }

// Cancel detaches the subscription. Idempotent and safe to call
// concurrently with delivery.
func (sub *feedSubscription) Cancel() {
	sub.cancelOnce.Do(func() { sub.hub.detach(sub.id) })
}

// Subscribe attaches a live subscriber: one snapshot frame, then diffs.
// The snapshot is queried and the subscriber registered under one lock
// acquisition relative to diff fan-out, so no diff published after the
// snapshot can be missed.
func (s *feedService) Subscribe(ctx context.Context, kind models.FeedKind, viewerID string) (FeedSubscription, error) {
	if !kind.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown feed %q", kind), nil)
	}

	snapshot, err := s.GetFeed(ctx, &FeedRequest{
		Kind:       kind,
		Pagination: models.PaginationParams{Limit: s.cfg.DefaultLimit},
	}, viewerID)
	if err != nil {
		return nil, err
	}

	sub := &feedSubscription{
		kind:     kind,
		viewerID: viewerID,
		ch:       make(chan *models.FeedUpdate, s.cfg.SubscriberBuffer),
		hub:      s,
	}

	s.mu.Lock()
	s.nextSub++
	sub.id = s.nextSub
	s.sequence++
	// The snapshot frame is queued before the subscriber becomes visible
	// to fan-out, so it is always the first frame out.
	sub.ch <- &models.FeedUpdate{
		Type:     models.FeedUpdateSnapshot,
		Feed:     kind,
		Posts:    snapshot.Data,
		Sequence: s.sequence,
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	s.logger.Debug("feed subscriber attached",
		zap.Uint64("subscription_id", sub.id),
		zap.String("feed", string(kind)))
	return sub, nil
}

func (s *feedService) detach(id uint64) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if ok {
		delete(s.subs, id)
	}
	s.mu.Unlock()
	if ok {
		close(sub.ch)
		s.logger.Debug("feed subscriber detached", zap.Uint64("subscription_id", id))
	}
}

// handlePostCreated fans a new post out to every live subscriber.
func (s *feedService) handlePostCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PostCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	// Re-read through the repository so the frame carries the full post.
	post, err := s.postRepo.GetByID(ctx, e.PostID, "")
	if err != nil || post == nil {
		s.logger.Warn("skipping created fan-out, post unavailable",
			zap.Int64("post_id", e.PostID), zap.Error(err))
		return nil
	}

	s.invalidateTrending(ctx)
	s.broadcast(&models.FeedUpdate{
		Type: models.FeedUpdateCreated,
		Post: post,
	})
	return nil
}

// handlePostCounters fans a counter diff out to every live subscriber,
// dropping versions at or below the last one delivered for that post.
func (s *feedService) handlePostCounters(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PostCountersUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	update := &models.FeedUpdate{
		Type: models.FeedUpdateCounters,
		Counters: &models.PostCounters{
			PostID:   e.PostID,
			Likes:    e.Likes,
			Plays:    e.Plays,
			Comments: e.Comments,
			Version:  e.Version,
		},
	}

	if e.Counter == "likes" {
		s.invalidateTrending(ctx)
	}
	s.broadcast(update)
	return nil
}

// broadcast delivers one frame to every subscriber whose feed it touches.
// Delivery happens under the hub lock, which serializes frames: two
// broadcasts can never interleave per subscriber. A subscriber whose
// buffer is full is dropped rather than allowed to stall the rest.
func (s *feedService) broadcast(update *models.FeedUpdate) {
	var dropped []*feedSubscription

	s.mu.Lock()
	if update.Type == models.FeedUpdateCounters {
		v := update.Counters.Version
		if last, seen := s.lastVersion[update.Counters.PostID]; seen && v <= last {
			s.mu.Unlock()
			return
		}
		s.lastVersion[update.Counters.PostID] = v
	}
	for _, sub := range s.subs {
		s.sequence++
		frame := *update
		frame.Feed = sub.kind
		frame.Sequence = s.sequence
		select {
		case sub.ch <- &frame:
		default:
			delete(s.subs, sub.id)
			dropped = append(dropped, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range dropped {
		close(sub.ch)
		s.logger.Warn("dropped slow feed subscriber",
			zap.Uint64("subscription_id", sub.id),
			zap.String("feed", string(sub.kind)))
	}
}

func (s *feedService) invalidateTrending(ctx context.Context) {
	if !s.cfg.TrendingCacheEnable {
		return
	}
	if err := s.cache.Delete(ctx, trendingCacheKey); err != nil {
		s.logger.Warn("trending cache invalidation failed", zap.Error(err))
	}
}
