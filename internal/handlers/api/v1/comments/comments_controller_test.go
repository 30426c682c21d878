// ===============================
// FILE: internal/handlers/api/v1/comments/comments_controller_test.go
// ===============================

package comments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wavehub/internal/contextutils"
	"wavehub/internal/models"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockCommentService records the last request it saw and replays canned
// responses.
type mockCommentService struct {
	lastAdd  *services.AddCommentRequest
	lastList *services.ListCommentsRequest
	addErr   error
}

func (m *mockCommentService) AddComment(ctx context.Context, identity *models.Identity, req *services.AddCommentRequest) (*services.AddCommentResult, error) {
	m.lastAdd = req
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &services.AddCommentResult{
		Comment:  &models.Comment{ID: 7, PostID: req.PostID, Text: req.Text},
		Counters: &models.PostCounters{PostID: req.PostID, Comments: 1, Version: 1},
	}, nil
}

func (m *mockCommentService) ListComments(ctx context.Context, req *services.ListCommentsRequest, viewerID string) (*models.PaginatedResponse[*models.Comment], error) {
	m.lastList = req
	return &models.PaginatedResponse[*models.Comment]{
		Data: []*models.Comment{
			{ID: 1, PostID: req.PostID, Text: "first"},
			{ID: 2, PostID: req.PostID, Text: "second"},
		},
		Pagination: models.PaginationMeta{ItemsPerPage: 10},
	}, nil
}

type mockEngagementService struct {
	lastCommentID int64
	lastLiked     bool
}

func (m *mockEngagementService) SetPostLike(ctx context.Context, identity *models.Identity, postID int64, liked bool) (*services.SetLikeResult, error) {
	return nil, nil
}

func (m *mockEngagementService) SetCommentLike(ctx context.Context, identity *models.Identity, commentID int64, liked bool) (*services.SetLikeResult, error) {
	m.lastCommentID = commentID
	m.lastLiked = liked
	return &services.SetLikeResult{Changed: true, Liked: liked, Likes: 3}, nil
}

func (m *mockEngagementService) RecordPlay(ctx context.Context, postID int64) (*models.PostCounters, error) {
	return nil, nil
}

func withTestIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextutils.WithIdentity(r.Context(), &models.Identity{ID: "idp|tester", Email: "tester@example.com"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestRouter(commentSvc *mockCommentService, engagementSvc *mockEngagementService) chi.Router {
	logger := zap.NewNop()
	controller := NewCommentController(commentSvc, engagementSvc, response.NewWriter(logger), logger)
	r := chi.NewRouter()
	controller.RegisterRoutes(r, withTestIdentity)
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *response.APIResponse {
	t.Helper()
	var envelope response.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return &envelope
}

func TestAddComment(t *testing.T) {
	commentSvc := &mockCommentService{}
	router := newTestRouter(commentSvc, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/posts/42/comments", strings.NewReader(`{"text":"nice track"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
	require.NotNil(t, commentSvc.lastAdd)
	assert.Equal(t, int64(42), commentSvc.lastAdd.PostID)
	assert.Equal(t, "nice track", commentSvc.lastAdd.Text)
}

func TestAddCommentRejectsBadJSON(t *testing.T) {
	router := newTestRouter(&mockCommentService{}, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/posts/42/comments", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, services.ErrTypeValidation, envelope.Error.Type)
}

func TestAddCommentRejectsBadPostID(t *testing.T) {
	router := newTestRouter(&mockCommentService{}, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/posts/abc/comments", strings.NewReader(`{"text":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddCommentServiceErrorMapsToStatus(t *testing.T) {
	commentSvc := &mockCommentService{addErr: services.NewNotFoundError("post not found")}
	router := newTestRouter(commentSvc, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodPost, "/posts/42/comments", strings.NewReader(`{"text":"x"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, services.ErrTypeNotFound, envelope.Error.Type)
}

func TestListComments(t *testing.T) {
	commentSvc := &mockCommentService{}
	router := newTestRouter(commentSvc, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodGet, "/posts/42/comments?limit=10&order=desc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, commentSvc.lastList)
	assert.Equal(t, int64(42), commentSvc.lastList.PostID)
	assert.Equal(t, 10, commentSvc.lastList.Pagination.Limit)
	assert.True(t, commentSvc.lastList.Descending)
}

func TestListCommentsRejectsBadLimit(t *testing.T) {
	router := newTestRouter(&mockCommentService{}, &mockEngagementService{})

	req := httptest.NewRequest(http.MethodGet, "/posts/42/comments?limit=zero", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCommentLike(t *testing.T) {
	engagementSvc := &mockEngagementService{}
	router := newTestRouter(&mockCommentService{}, engagementSvc)

	req := httptest.NewRequest(http.MethodPut, "/comments/9/like", strings.NewReader(`{"liked":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), engagementSvc.lastCommentID)
	assert.True(t, engagementSvc.lastLiked)
}
