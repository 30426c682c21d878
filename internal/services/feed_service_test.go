// ===============================
// FILE: internal/services/feed_service_test.go
// ===============================

package services

import (
	"context"
	"testing"
	"time"

	"wavehub/internal/cache"
	"wavehub/internal/config"
	"wavehub/internal/events"
	"wavehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type feedFixture struct {
	svc   FeedService
	posts *fakePostRepo
	bus   events.EventBus
	cache cache.Cache
}

func newFeedFixture(t *testing.T, buffer int) *feedFixture {
	t.Helper()
	bus := events.NewInMemoryEventBus(nil, zap.NewNop())
	memCache := cache.NewMemoryCache(cache.DefaultConfig(), zap.NewNop())
	t.Cleanup(func() { _ = memCache.Close() })
	posts := newFakePostRepo()
	svc, err := NewFeedService(posts, memCache, bus, config.FeedConfig{
		DefaultLimit:        20,
		MaxLimit:            100,
		SubscriberBuffer:    buffer,
		TrendingCacheEnable: true,
	}, zap.NewNop())
	require.NoError(t, err)
	return &feedFixture{svc: svc, posts: posts, bus: bus, cache: memCache}
}

func (fx *feedFixture) seedPost(t *testing.T, title string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, AuthorID: "idp|a", AudioURL: "https://cdn.example.com/a.mp3"}
	require.NoError(t, fx.posts.Create(context.Background(), post))
	return post
}

// receiveFrame fails the test if no frame arrives promptly. Publish is
// synchronous on the bus, so frames are already buffered by the time the
// publisher returns; the timeout only guards against bugs.
func receiveFrame(t *testing.T, sub FeedSubscription) *models.FeedUpdate {
	t.Helper()
	select {
	case frame, ok := <-sub.Updates():
		require.True(t, ok, "subscription channel closed unexpectedly")
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed frame")
		return nil
	}
}

func TestSubscribeSnapshotIsFirstFrame(t *testing.T) {
	fx := newFeedFixture(t, 16)
	fx.seedPost(t, "older")
	fx.seedPost(t, "newer")

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	defer sub.Cancel()

	frame := receiveFrame(t, sub)
	assert.Equal(t, models.FeedUpdateSnapshot, frame.Type)
	assert.Equal(t, models.FeedRecent, frame.Feed)
	require.Len(t, frame.Posts, 2)
	assert.Equal(t, "newer", frame.Posts[0].Title)
}

func TestSubscribeDeliversCreatedDiff(t *testing.T) {
	fx := newFeedFixture(t, 16)

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	defer sub.Cancel()
	_ = receiveFrame(t, sub) // snapshot

	post := fx.seedPost(t, "breaking")
	require.NoError(t, fx.bus.Publish(context.Background(),
		events.NewPostCreatedEvent(post.ID, post.AuthorID, post.Title)))

	frame := receiveFrame(t, sub)
	assert.Equal(t, models.FeedUpdateCreated, frame.Type)
	require.NotNil(t, frame.Post)
	assert.Equal(t, "breaking", frame.Post.Title)
}

func TestCounterFramesArriveInVersionOrder(t *testing.T) {
	fx := newFeedFixture(t, 16)
	post := fx.seedPost(t, "tracked")

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	defer sub.Cancel()
	_ = receiveFrame(t, sub) // snapshot

	for v := int64(1); v <= 3; v++ {
		require.NoError(t, fx.bus.Publish(context.Background(), events.NewPostCountersUpdatedEvent(
			post.ID, "likes", &models.PostCounters{PostID: post.ID, Likes: int(v), Version: v}, "idp|x",
		)))
	}

	for v := int64(1); v <= 3; v++ {
		frame := receiveFrame(t, sub)
		require.Equal(t, models.FeedUpdateCounters, frame.Type)
		assert.Equal(t, v, frame.Counters.Version)
	}
}

func TestStaleCounterFramesAreDropped(t *testing.T) {
	fx := newFeedFixture(t, 16)
	post := fx.seedPost(t, "tracked")

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	defer sub.Cancel()
	_ = receiveFrame(t, sub) // snapshot

	publish := func(likes int, version int64) {
		require.NoError(t, fx.bus.Publish(context.Background(), events.NewPostCountersUpdatedEvent(
			post.ID, "likes", &models.PostCounters{PostID: post.ID, Likes: likes, Version: version}, "idp|x",
		)))
	}
	publish(2, 2)
	publish(1, 1) // stale, must never surface
	publish(3, 3)

	frame := receiveFrame(t, sub)
	assert.Equal(t, int64(2), frame.Counters.Version)
	frame = receiveFrame(t, sub)
	assert.Equal(t, int64(3), frame.Counters.Version, "stale frame skipped")
}

func TestFrameSequencesIncrease(t *testing.T) {
	fx := newFeedFixture(t, 16)
	post := fx.seedPost(t, "tracked")

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	defer sub.Cancel()

	for v := int64(1); v <= 2; v++ {
		require.NoError(t, fx.bus.Publish(context.Background(), events.NewPostCountersUpdatedEvent(
			post.ID, "plays", &models.PostCounters{PostID: post.ID, Plays: int(v), Version: v}, "",
		)))
	}

	last := uint64(0)
	for i := 0; i < 3; i++ { // snapshot + 2 diffs
		frame := receiveFrame(t, sub)
		assert.Greater(t, frame.Sequence, last)
		last = frame.Sequence
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	fx := newFeedFixture(t, 1)
	post := fx.seedPost(t, "tracked")

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)
	// The snapshot fills the only buffer slot and is never drained.

	for v := int64(1); v <= 2; v++ {
		require.NoError(t, fx.bus.Publish(context.Background(), events.NewPostCountersUpdatedEvent(
			post.ID, "plays", &models.PostCounters{PostID: post.ID, Plays: int(v), Version: v}, "",
		)))
	}

	// The buffered snapshot is still readable, then the channel closes.
	frame := receiveFrame(t, sub)
	assert.Equal(t, models.FeedUpdateSnapshot, frame.Type)
	_, ok := <-sub.Updates()
	assert.False(t, ok, "slow subscriber channel is closed")

	sub.Cancel() // safe after the hub already detached
}

func TestCancelIsIdempotent(t *testing.T) {
	fx := newFeedFixture(t, 4)

	sub, err := fx.svc.Subscribe(context.Background(), models.FeedRecent, "")
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel()

	_ = receiveFrame(t, sub) // buffered snapshot survives cancellation
	_, ok := <-sub.Updates()
	assert.False(t, ok)

	// Fan-out after detach must not panic.
	post := fx.seedPost(t, "after")
	require.NoError(t, fx.bus.Publish(context.Background(),
		events.NewPostCreatedEvent(post.ID, post.AuthorID, post.Title)))
}

func TestSubscribeRejectsUnknownFeed(t *testing.T) {
	fx := newFeedFixture(t, 4)

	_, err := fx.svc.Subscribe(context.Background(), models.FeedKind("velocity"), "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestGetFeedRejectsUnknownFeed(t *testing.T) {
	fx := newFeedFixture(t, 4)

	_, err := fx.svc.GetFeed(context.Background(), &FeedRequest{Kind: "velocity"}, "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestFollowingFeedFallsBackToRecent(t *testing.T) {
	fx := newFeedFixture(t, 4)
	fx.seedPost(t, "a")
	fx.seedPost(t, "b")

	page, err := fx.svc.GetFeed(context.Background(), &FeedRequest{
		Kind:       models.FeedFollowing,
		Pagination: models.PaginationParams{Limit: 10},
	}, "idp|viewer")
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
}

func TestTrendingFeedCachesAnonymousDefaultPage(t *testing.T) {
	fx := newFeedFixture(t, 4)
	fx.seedPost(t, "hot")

	_, err := fx.svc.GetFeed(context.Background(), &FeedRequest{Kind: models.FeedTrending}, "")
	require.NoError(t, err)

	var cached []*models.Post
	hit, err := fx.cache.Get(context.Background(), "feed:trending:v1", &cached)
	require.NoError(t, err)
	assert.True(t, hit, "anonymous default page lands in the cache")

	// A signed-in viewer never reads or writes the shared entry.
	page, err := fx.svc.GetFeed(context.Background(), &FeedRequest{Kind: models.FeedTrending}, "idp|v")
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestLikesChangeInvalidatesTrendingCache(t *testing.T) {
	fx := newFeedFixture(t, 4)
	post := fx.seedPost(t, "hot")

	_, err := fx.svc.GetFeed(context.Background(), &FeedRequest{Kind: models.FeedTrending}, "")
	require.NoError(t, err)

	require.NoError(t, fx.bus.Publish(context.Background(), events.NewPostCountersUpdatedEvent(
		post.ID, "likes", &models.PostCounters{PostID: post.ID, Likes: 1, Version: 1}, "idp|x",
	)))

	var cached []*models.Post
	hit, err := fx.cache.Get(context.Background(), "feed:trending:v1", &cached)
	require.NoError(t, err)
	assert.False(t, hit, "likes movement evicts the trending page")
}

func TestGetFeedClampsLimit(t *testing.T) {
	fx := newFeedFixture(t, 4)
	fx.seedPost(t, "only")

	page, err := fx.svc.GetFeed(context.Background(), &FeedRequest{
		Kind:       models.FeedRecent,
		Pagination: models.PaginationParams{Limit: 5000},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.ItemsPerPage, "limit clamped to the maximum")
}
