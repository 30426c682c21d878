// ===============================
// FILE: internal/services/engagement_service_test.go
// ===============================

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"wavehub/internal/events"
	"wavehub/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingHandler records counter events as they are published.
type countingHandler struct {
	mu     sync.Mutex
	events []*events.PostCountersUpdatedEvent
}

func (h *countingHandler) record(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := event.(*events.PostCountersUpdatedEvent); ok {
		h.events = append(h.events, e)
	}
	return nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func newEngagementServiceForTest(t *testing.T, repo *fakeEngagementRepo) (EngagementService, *countingHandler) {
	t.Helper()
	bus := events.NewInMemoryEventBus(nil, zap.NewNop())
	handler := &countingHandler{}
	require.NoError(t, bus.Subscribe(events.EventPostCounters, events.EventHandlerFunc{
		ID:   "test.counting",
		Func: handler.record,
	}))
	return NewEngagementService(repo, bus, zap.NewNop()), handler
}

func TestSetPostLikeTogglesOnce(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.addPost(7)
	svc, handler := newEngagementServiceForTest(t, repo)
	identity := testIdentity("idp|liker")

	result, err := svc.SetPostLike(context.Background(), identity, 7, true)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.Likes)
	assert.Equal(t, 1, handler.count(), "a real transition publishes one event")
}

func TestSetPostLikeIsIdempotent(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.addPost(7)
	svc, handler := newEngagementServiceForTest(t, repo)
	identity := testIdentity("idp|liker")

	for i := 0; i < 3; i++ {
		result, err := svc.SetPostLike(context.Background(), identity, 7, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Likes, "repeats never move the aggregate")
		assert.True(t, result.Liked)
	}
	assert.Equal(t, 1, handler.count(), "no-op repeats publish nothing")

	result, err := svc.SetPostLike(context.Background(), identity, 7, false)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 0, result.Likes)
	assert.Equal(t, 2, handler.count())
}

func TestSetPostLikeDistinctUsersAccumulate(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.addPost(9)
	svc, _ := newEngagementServiceForTest(t, repo)

	for i := 0; i < 5; i++ {
		_, err := svc.SetPostLike(context.Background(), testIdentity(fmt.Sprintf("idp|u%d", i)), 9, true)
		require.NoError(t, err)
	}

	result, err := svc.SetPostLike(context.Background(), testIdentity("idp|u0"), 9, true)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 5, result.Likes)
}

func TestSetPostLikeMissingPost(t *testing.T) {
	svc, _ := newEngagementServiceForTest(t, newFakeEngagementRepo())

	_, err := svc.SetPostLike(context.Background(), testIdentity("idp|x"), 404, true)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestSetPostLikeRetryExhaustedMapsToTransactionFailure(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.err = fmt.Errorf("gave up: %w", repositories.ErrRetryExhausted)
	svc, _ := newEngagementServiceForTest(t, repo)

	_, err := svc.SetPostLike(context.Background(), testIdentity("idp|x"), 1, true)
	require.Error(t, err)
	assert.True(t, IsTransactionError(err))
}

func TestSetPostLikeRequiresIdentity(t *testing.T) {
	svc, _ := newEngagementServiceForTest(t, newFakeEngagementRepo())

	_, err := svc.SetPostLike(context.Background(), nil, 1, true)
	require.Error(t, err)
	svcErr := GetServiceError(err)
	assert.Equal(t, ErrTypeUnauthorized, svcErr.Type)
}

func TestRecordPlayCountsEveryCall(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.addPost(3)
	svc, handler := newEngagementServiceForTest(t, repo)

	for i := 1; i <= 4; i++ {
		counters, err := svc.RecordPlay(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, i, counters.Plays)
	}
	assert.Equal(t, 4, handler.count(), "every play publishes")
}

func TestSetCommentLikeToggles(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.commentLikes[12] = make(map[string]bool)
	svc, handler := newEngagementServiceForTest(t, repo)
	identity := testIdentity("idp|c")

	result, err := svc.SetCommentLike(context.Background(), identity, 12, true)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, 1, result.Likes)
	assert.Nil(t, result.Counters, "comment likes carry no post counters")
	assert.Equal(t, 0, handler.count(), "comment likes stay off the post stream")

	result, err = svc.SetCommentLike(context.Background(), identity, 12, true)
	require.NoError(t, err)
	assert.False(t, result.Changed)
}

func TestCounterVersionAdvancesPerTransition(t *testing.T) {
	repo := newFakeEngagementRepo()
	repo.addPost(5)
	svc, handler := newEngagementServiceForTest(t, repo)

	_, err := svc.SetPostLike(context.Background(), testIdentity("idp|a"), 5, true)
	require.NoError(t, err)
	_, err = svc.RecordPlay(context.Background(), 5)
	require.NoError(t, err)
	_, err = svc.SetPostLike(context.Background(), testIdentity("idp|a"), 5, false)
	require.NoError(t, err)

	require.Equal(t, 3, handler.count())
	for i := 1; i < len(handler.events); i++ {
		assert.Greater(t, handler.events[i].Version, handler.events[i-1].Version,
			"versions total the commit order")
	}
}
