// ===============================
// FILE: cmd/server/main.go
// ===============================

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wavehub/internal/config"
	"wavehub/internal/database"
	"wavehub/internal/router"
	"wavehub/internal/services"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(&cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("starting wavehub",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	dbManager, err := database.NewManager(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer dbManager.Close()

	if cfg.Database.RunMigrations {
		if err := dbManager.Migrate(cfg.Database.MigrationsPath); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	collection, err := services.NewServiceCollection(dbManager, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := collection.Start(ctx); err != nil {
		logger.Fatal("failed to start services", zap.Error(err))
	}

	server := &http.Server{
		Addr:           net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:        router.New(collection, logger),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := collection.Shutdown(shutdownCtx); err != nil {
		logger.Error("service shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func initLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	// Let container logs carry the instance identity.
	if host, herr := os.Hostname(); herr == nil {
		logger = logger.With(zap.String("host", host))
	}
	return logger, nil
}
