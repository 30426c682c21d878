// ===============================
// FILE: internal/handlers/api/v1/comments/comments_controller.go
// ===============================

package comments

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wavehub/internal/contextutils"
	"wavehub/internal/models"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CommentController handles comment endpoints. Comment reads and writes
// hang off the parent post; likes address the comment directly.
type CommentController struct {
	commentService    services.CommentService
	engagementService services.EngagementService
	writer            *response.Writer
	logger            *zap.Logger
}

// NewCommentController creates a comment controller.
func NewCommentController(
	commentService services.CommentService,
	engagementService services.EngagementService,
	writer *response.Writer,
	logger *zap.Logger,
) *CommentController {
	return &CommentController{
		commentService:    commentService,
		engagementService: engagementService,
		writer:            writer,
		logger:            logger,
	}
}

// RegisterRoutes mounts the comment routes.
func (c *CommentController) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/posts/{postID}/comments", func(r chi.Router) {
		r.With(requireAuth).Post("/", c.AddComment)
		r.Get("/", c.ListComments)
	})
	r.With(requireAuth).Put("/comments/{commentID}/like", c.SetLike)
}

type addCommentRequest struct {
	Text string `json:"text"`
}

// AddComment appends a comment to a post.
func (c *CommentController) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	var body addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writer.ValidationError(w, r, "invalid JSON body")
		return
	}

	result, err := c.commentService.AddComment(r.Context(), contextutils.GetIdentity(r.Context()), &services.AddCommentRequest{
		PostID: postID,
		Text:   body.Text,
	})
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.Created(w, r, result)
}

// ListComments pages a post's comments. order=desc flips to newest-first;
// the default is chronological.
func (c *CommentController) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	params := models.PaginationParams{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.writer.ValidationError(w, r, "invalid limit")
			return
		}
		params.Limit = limit
	}

	page, err := c.commentService.ListComments(r.Context(), &services.ListCommentsRequest{
		PostID:     postID,
		Pagination: params,
		Descending: r.URL.Query().Get("order") == "desc",
	}, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, page)
}

type setLikeRequest struct {
	Liked bool `json:"liked"`
}

// SetLike drives the caller's like relation on a comment to the requested
// state.
func (c *CommentController) SetLike(w http.ResponseWriter, r *http.Request) {
	commentID, err := pathID(r, "commentID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	var body setLikeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writer.ValidationError(w, r, "invalid JSON body")
		return
	}

	result, err := c.engagementService.SetCommentLike(r.Context(), contextutils.GetIdentity(r.Context()), commentID, body.Liked)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, result)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError("invalid "+name, err)
	}
	return id, nil
}
