// ===============================
// FILE: internal/handlers/api/v1/posts/posts_controller.go
// ===============================

package posts

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"wavehub/internal/contextutils"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxCreateBodySize caps multipart post bodies; the audio part dominates.
const maxCreateBodySize = 120 << 20

// PostController handles the post API endpoints.
type PostController struct {
	postService       services.PostService
	engagementService services.EngagementService
	writer            *response.Writer
	logger            *zap.Logger
}

// NewPostController creates a post controller.
func NewPostController(
	postService services.PostService,
	engagementService services.EngagementService,
	writer *response.Writer,
	logger *zap.Logger,
) *PostController {
	return &PostController{
		postService:       postService,
		engagementService: engagementService,
		writer:            writer,
		logger:            logger,
	}
}

// RegisterRoutes mounts the post routes. requireAuth wraps the mutating
// endpoints; reads stay anonymous-friendly.
func (c *PostController) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/posts", func(r chi.Router) {
		r.With(requireAuth).Post("/", c.CreatePost)
		r.Get("/{postID}", c.GetPost)
		r.With(requireAuth).Put("/{postID}/like", c.SetLike)
		r.Post("/{postID}/plays", c.RecordPlay)
	})
}

// CreatePost publishes a post. Accepts JSON (audio already uploaded) or
// multipart with an "audio" part that goes to the object store first.
func (c *PostController) CreatePost(w http.ResponseWriter, r *http.Request) {
	identity := contextutils.GetIdentity(r.Context())

	req, err := c.parseCreateRequest(r)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	post, err := c.postService.CreatePost(r.Context(), identity, req)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.Created(w, r, post)
}

func (c *PostController) parseCreateRequest(r *http.Request) (*services.CreatePostRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var req services.CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, services.NewValidationError("invalid JSON body", err)
		}
		return &req, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxCreateBodySize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, services.NewValidationError("invalid multipart body", err)
	}

	req := &services.CreatePostRequest{
		Title:    r.FormValue("title"),
		AudioURL: r.FormValue("audio_url"),
	}
	if desc := r.FormValue("description"); desc != "" {
		req.Description = &desc
	}
	if tags := r.FormValue("tags"); tags != "" {
		req.Tags = strings.Split(tags, ",")
	}
	if d := r.FormValue("duration"); d != "" {
		duration, err := strconv.ParseFloat(d, 64)
		if err != nil {
			return nil, services.NewValidationError("invalid duration", err)
		}
		req.Duration = duration
	}
	if ch := r.FormValue("channel_id"); ch != "" {
		channelID, err := strconv.ParseInt(ch, 10, 64)
		if err != nil {
			return nil, services.NewValidationError("invalid channel id", err)
		}
		req.ChannelID = &channelID
	}

	file, header, err := r.FormFile("audio")
	if err == nil {
		req.Audio = &services.AudioUpload{
			Body:        file,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Filename:    header.Filename,
		}
	} else if err != http.ErrMissingFile {
		return nil, services.NewValidationError("invalid audio part", err)
	}

	return req, nil
}

// GetPost serves one post with viewer-relative fields resolved.
func (c *PostController) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	post, err := c.postService.GetPost(r.Context(), postID, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, post)
}

type setLikeRequest struct {
	Liked bool `json:"liked"`
}

// SetLike drives the caller's like relation to the requested state.
// Idempotent: repeating the same body is a no-op.
func (c *PostController) SetLike(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	var body setLikeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		c.writer.ValidationError(w, r, "invalid JSON body")
		return
	}

	result, err := c.engagementService.SetPostLike(r.Context(), contextutils.GetIdentity(r.Context()), postID, body.Liked)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, result)
}

// RecordPlay counts one playback. Fired by clients when playback starts;
// no authentication required.
func (c *PostController) RecordPlay(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	counters, err := c.engagementService.RecordPlay(r.Context(), postID)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, counters)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError("invalid "+name, err)
	}
	return id, nil
}
