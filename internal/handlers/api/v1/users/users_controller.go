// ===============================
// FILE: internal/handlers/api/v1/users/users_controller.go
// ===============================

package users

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"wavehub/internal/contextutils"
	"wavehub/internal/models"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxProfileBodySize caps multipart profile patches.
const maxProfileBodySize = 16 << 20

// UserController handles profile endpoints.
type UserController struct {
	userService services.UserService
	postService services.PostService
	writer      *response.Writer
	logger      *zap.Logger
}

// NewUserController creates a user controller.
func NewUserController(
	userService services.UserService,
	postService services.PostService,
	writer *response.Writer,
	logger *zap.Logger,
) *UserController {
	return &UserController{
		userService: userService,
		postService: postService,
		writer:      writer,
		logger:      logger,
	}
}

// RegisterRoutes mounts the user routes.
func (c *UserController) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/users", func(r chi.Router) {
		r.With(requireAuth).Post("/provision", c.Provision)
		r.With(requireAuth).Patch("/me", c.UpdateProfile)
		r.Get("/{userID}", c.GetUser)
		r.Get("/{userID}/posts", c.ListPosts)
	})
}

// Provision fetches the caller's profile, creating it on first contact.
// 201 when this request created the profile, 200 when it already existed.
func (c *UserController) Provision(w http.ResponseWriter, r *http.Request) {
	result, err := c.userService.FetchOrProvision(r.Context(), contextutils.GetIdentity(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	if result.Created {
		c.writer.Created(w, r, result.User)
		return
	}
	c.writer.OK(w, r, result.User)
}

// GetUser serves a profile by ID, or by username with the "@" prefix.
func (c *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "userID")

	var (
		user *models.User
		err  error
	)
	if strings.HasPrefix(key, "@") {
		user, err = c.userService.GetUserByUsername(r.Context(), strings.TrimPrefix(key, "@"))
	} else {
		user, err = c.userService.GetUser(r.Context(), key)
	}
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, user)
}

// ListPosts pages one author's posts.
func (c *UserController) ListPosts(w http.ResponseWriter, r *http.Request) {
	authorID := chi.URLParam(r, "userID")

	params := models.PaginationParams{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.writer.ValidationError(w, r, "invalid limit")
			return
		}
		params.Limit = limit
	}

	page, err := c.postService.ListPostsByAuthor(r.Context(), authorID, params, contextutils.GetViewerID(r.Context()))
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, page)
}

type updateProfileBody struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}

// UpdateProfile patches the caller's profile. JSON for text-only patches;
// multipart with an "image" part to replace the profile image.
func (c *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, err := c.parseUpdateRequest(r)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}

	user, err := c.userService.UpdateProfile(r.Context(), contextutils.GetIdentity(r.Context()), req)
	if err != nil {
		c.writer.Error(w, r, err)
		return
	}
	c.writer.OK(w, r, user)
}

func (c *UserController) parseUpdateRequest(r *http.Request) (*services.UpdateProfileRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var body updateProfileBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, services.NewValidationError("invalid JSON body", err)
		}
		return &services.UpdateProfileRequest{Name: body.Name, Bio: body.Bio}, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxProfileBodySize)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, services.NewValidationError("invalid multipart body", err)
	}

	req := &services.UpdateProfileRequest{}
	if _, ok := r.MultipartForm.Value["name"]; ok {
		name := r.FormValue("name")
		req.Name = &name
	}
	if _, ok := r.MultipartForm.Value["bio"]; ok {
		bio := r.FormValue("bio")
		req.Bio = &bio
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		req.Image = &services.ImageUpload{
			Body:        file,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Filename:    header.Filename,
		}
	} else if err != http.ErrMissingFile {
		return nil, services.NewValidationError("invalid image part", err)
	}

	return req, nil
}
