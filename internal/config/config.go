package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Feed     FeedConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	MaxHeaderBytes  int
}

// DatabaseConfig holds Postgres connection and pool configuration
type DatabaseConfig struct {
	URL                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	MigrationsPath     string
	RunMigrations      bool

	// Counter engine transaction retry budget
	TxMaxRetries   int
	TxRetryBackoff time.Duration
}

// CacheConfig holds cache provider configuration
type CacheConfig struct {
	Provider      string // "memory" or "redis"
	RedisURL      string
	RedisDB       int
	RedisPassword string
	PoolSize      int
	DefaultTTL    time.Duration
	TrendingTTL   time.Duration
}

// StorageConfig holds object store (Cloudinary) configuration
type StorageConfig struct {
	CloudinaryURL string
	UploadFolder  string
	UploadTimeout time.Duration
	MaxAudioSize  int64
	MaxImageSize  int64
	AllowedAudio  []string
	AllowedImages []string
}

// AuthConfig holds the identity-provider boundary configuration. Tokens are
// minted by an external provider; this service only verifies them.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	JWTLeeway time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string
	Development bool
}

// FeedConfig holds feed service tuning
type FeedConfig struct {
	DefaultLimit        int
	MaxLimit            int
	SubscriberBuffer    int
	TrendingCacheEnable bool
}

// Load reads configuration from the environment, loading a .env file first
// outside production.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	if env != "production" {
		envFile := fmt.Sprintf(".env.%s", env)
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load() // fallback to .env
		}
	}

	cfg := &Config{
		Server:   loadServerConfig(env),
		Database: loadDatabaseConfig(),
		Cache:    loadCacheConfig(),
		Storage:  loadStorageConfig(),
		Auth:     loadAuthConfig(),
		Logging:  loadLoggingConfig(env),
		Feed:     loadFeedConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig(env string) ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "9000"),
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Environment:     env,
		ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		GracefulTimeout: getDurationEnv("GRACEFUL_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:  getIntEnv("MAX_HEADER_BYTES", 1<<20),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:                getEnv("DATABASE_URL", ""),
		MaxOpenConns:       getIntEnv("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:       getIntEnv("DB_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime:    getDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime:    getDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		SlowQueryThreshold: getDurationEnv("DB_SLOW_QUERY_THRESHOLD", 100*time.Millisecond),
		MigrationsPath:     getEnv("DB_MIGRATIONS_PATH", "migrations"),
		RunMigrations:      getBoolEnv("DB_RUN_MIGRATIONS", true),
		TxMaxRetries:       getIntEnv("DB_TX_MAX_RETRIES", 3),
		TxRetryBackoff:     getDurationEnv("DB_TX_RETRY_BACKOFF", 25*time.Millisecond),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Provider:      getEnv("CACHE_PROVIDER", "memory"),
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
		DefaultTTL:    getDurationEnv("CACHE_TTL", 15*time.Minute),
		TrendingTTL:   getDurationEnv("CACHE_TRENDING_TTL", time.Minute),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		CloudinaryURL: getEnv("CLOUDINARY_URL", ""),
		UploadFolder:  getEnv("STORAGE_UPLOAD_FOLDER", "wavehub"),
		UploadTimeout: getDurationEnv("STORAGE_UPLOAD_TIMEOUT", 2*time.Minute),
		MaxAudioSize:  getInt64Env("STORAGE_MAX_AUDIO_SIZE", 50*1024*1024),
		MaxImageSize:  getInt64Env("STORAGE_MAX_IMAGE_SIZE", 5*1024*1024),
		AllowedAudio: getSliceEnv("STORAGE_ALLOWED_AUDIO",
			[]string{"audio/mpeg", "audio/mp4", "audio/aac", "audio/wav", "audio/x-m4a"}),
		AllowedImages: getSliceEnv("STORAGE_ALLOWED_IMAGES",
			[]string{"image/jpeg", "image/jpg", "image/png", "image/webp"}),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "wavehub-identity"),
		JWTLeeway: getDurationEnv("JWT_LEEWAY", 30*time.Second),
	}
}

func loadLoggingConfig(env string) LoggingConfig {
	return LoggingConfig{
		Level:       getEnv("LOG_LEVEL", defaultLogLevel(env)),
		Development: env != "production",
	}
}

func loadFeedConfig() FeedConfig {
	return FeedConfig{
		DefaultLimit:        getIntEnv("FEED_DEFAULT_LIMIT", 20),
		MaxLimit:            getIntEnv("FEED_MAX_LIMIT", 100),
		SubscriberBuffer:    getIntEnv("FEED_SUBSCRIBER_BUFFER", 64),
		TrendingCacheEnable: getBoolEnv("FEED_TRENDING_CACHE", true),
	}
}

func defaultLogLevel(env string) string {
	if env == "production" {
		return "info"
	}
	return "debug"
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth.JWTSecret == "" && c.Server.Environment == "production" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Storage.CloudinaryURL == "" && c.Server.Environment == "production" {
		return fmt.Errorf("CLOUDINARY_URL is required in production")
	}
	if c.Cache.Provider != "memory" && c.Cache.Provider != "redis" {
		return fmt.Errorf("unsupported cache provider %q", c.Cache.Provider)
	}
	if c.Database.TxMaxRetries < 0 {
		return fmt.Errorf("DB_TX_MAX_RETRIES must be >= 0")
	}
	if c.Feed.DefaultLimit <= 0 || c.Feed.DefaultLimit > c.Feed.MaxLimit {
		return fmt.Errorf("FEED_DEFAULT_LIMIT must be in (0, FEED_MAX_LIMIT]")
	}
	// An unbuffered subscriber channel would block the hub's snapshot send
	// while it holds the broadcast mutex, stalling all feed delivery.
	if c.Feed.SubscriberBuffer < 1 {
		return fmt.Errorf("FEED_SUBSCRIBER_BUFFER must be >= 1")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ===============================
// ENV HELPERS
// ===============================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64Env(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
