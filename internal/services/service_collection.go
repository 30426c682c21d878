// ===============================
// FILE: internal/services/service_collection.go
// ===============================

package services

import (
	"context"
	"errors"
	"fmt"

	"wavehub/internal/cache"
	"wavehub/internal/config"
	"wavehub/internal/database"
	"wavehub/internal/events"
	"wavehub/internal/repositories"
	"wavehub/internal/storage"

	"go.uber.org/zap"
)

// ServiceCollection wires repositories, infrastructure and services
// together with constructor injection. The router and handlers depend on
// this, never on concrete service types.
type ServiceCollection struct {
	// Core services
	UserService       UserService
	PostService       PostService
	CommentService    CommentService
	EngagementService EngagementService
	FeedService       FeedService
	ChannelService    ChannelService

	// Infrastructure
	Cache     cache.Cache
	EventBus  events.EventBus
	Store     storage.ObjectStore
	DBManager *database.Manager
	Config    *config.Config
	Logger    *zap.Logger
}

// NewServiceCollection builds the full service graph.
func NewServiceCollection(
	dbManager *database.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) (*ServiceCollection, error) {
	if dbManager == nil {
		return nil, fmt.Errorf("database manager is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	cacheClient, err := cache.New(&cache.Config{
		Provider:      cfg.Cache.Provider,
		TTL:           cfg.Cache.DefaultTTL,
		RedisURL:      cfg.Cache.RedisURL,
		RedisDB:       cfg.Cache.RedisDB,
		RedisPassword: cfg.Cache.RedisPassword,
		PoolSize:      cfg.Cache.PoolSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize cache: %w", err)
	}

	store, err := storage.NewCloudinaryStore(&cfg.Storage, logger)
	if err != nil {
		if !errors.Is(err, storage.ErrNotConfigured) || cfg.IsProduction() {
			return nil, fmt.Errorf("initialize object store: %w", err)
		}
		logger.Warn("object store not configured, uploads disabled")
		store = storage.NewDisabledStore()
	}

	eventBus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), logger)

	// Repositories
	retries := cfg.Database.TxMaxRetries
	backoffBase := cfg.Database.TxRetryBackoff
	postRepo := repositories.NewPostRepository(dbManager, logger, retries, backoffBase)
	engagementRepo := repositories.NewEngagementRepository(dbManager, logger, retries, backoffBase)
	commentRepo := repositories.NewCommentRepository(dbManager, engagementRepo, logger, retries, backoffBase)
	userRepo := repositories.NewUserRepository(dbManager, logger, retries, backoffBase)
	channelRepo := repositories.NewChannelRepository(dbManager, logger, retries, backoffBase)

	// Services
	userService := NewUserService(userRepo, store, eventBus, logger)
	postService := NewPostService(postRepo, channelRepo, userService, store, eventBus, logger)
	commentService := NewCommentService(commentRepo, userService, eventBus, logger)
	engagementService := NewEngagementService(engagementRepo, eventBus, logger)
	channelService := NewChannelService(channelRepo, cacheClient, logger)
	feedService, err := NewFeedService(postRepo, cacheClient, eventBus, cfg.Feed, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize feed service: %w", err)
	}

	return &ServiceCollection{
		UserService:       userService,
		PostService:       postService,
		CommentService:    commentService,
		EngagementService: engagementService,
		FeedService:       feedService,
		ChannelService:    channelService,
		Cache:             cacheClient,
		EventBus:          eventBus,
		Store:             store,
		DBManager:         dbManager,
		Config:            cfg,
		Logger:            logger,
	}, nil
}

// Start brings up the background machinery (event bus workers).
func (sc *ServiceCollection) Start(ctx context.Context) error {
	if err := sc.EventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	sc.Logger.Info("services started")
	return nil
}

// Shutdown stops background machinery and closes infrastructure handles.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := sc.EventBus.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop event bus: %w", err)
	}
	if err := sc.Cache.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close cache: %w", err)
	}
	sc.Logger.Info("services stopped")
	return firstErr
}

// Health reports infrastructure health for the health endpoint.
func (sc *ServiceCollection) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"database": "healthy",
		"cache":    "healthy",
	}
	if err := sc.DBManager.Health(ctx); err != nil {
		status["database"] = err.Error()
	}
	if err := sc.Cache.Health(ctx); err != nil {
		status["cache"] = err.Error()
	}
	return status
}
