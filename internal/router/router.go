// ===============================
// FILE: internal/router/router.go
// ===============================

package router

import (
	"net/http"

	"wavehub/internal/handlers/api/v1/channels"
	"wavehub/internal/handlers/api/v1/comments"
	"wavehub/internal/handlers/api/v1/feeds"
	"wavehub/internal/handlers/api/v1/health"
	"wavehub/internal/handlers/api/v1/posts"
	"wavehub/internal/handlers/api/v1/users"
	"wavehub/internal/middleware"
	"wavehub/internal/response"
	"wavehub/internal/services"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// New builds the HTTP handler tree: middleware chain, versioned API
// routes and the health endpoint.
func New(collection *services.ServiceCollection, logger *zap.Logger) http.Handler {
	writer := response.NewWriter(logger)
	auth := middleware.NewAuthenticator(collection.Config.Auth, writer, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recovery(logger, writer))

	healthController := health.NewHealthController(collection, writer, logger)
	r.Get("/healthz", healthController.Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		// All API routes see the identity when a token is present; the
		// mutating endpoints additionally require one.
		r.Use(auth.Optional())
		requireAuth := auth.Required()

		posts.NewPostController(
			collection.PostService, collection.EngagementService, writer, logger,
		).RegisterRoutes(r, requireAuth)

		comments.NewCommentController(
			collection.CommentService, collection.EngagementService, writer, logger,
		).RegisterRoutes(r, requireAuth)

		users.NewUserController(
			collection.UserService, collection.PostService, writer, logger,
		).RegisterRoutes(r, requireAuth)

		feeds.NewFeedController(
			collection.FeedService, writer, logger,
		).RegisterRoutes(r)

		channels.NewChannelController(
			collection.ChannelService, writer, logger,
		).RegisterRoutes(r, requireAuth)
	})

	return r
}
