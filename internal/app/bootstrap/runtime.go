package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-booking-core/internal/cache"
	appconfig "github.com/wolfman30/dental-booking-core/internal/config"
	"github.com/wolfman30/dental-booking-core/internal/interactions"
	"github.com/wolfman30/dental-booking-core/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildCacheStore picks the cache backend. The redis store is used only
// when it was requested and a client is available; everything else falls
// back to process memory.
func BuildCacheStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (cache.Store, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg != nil && cfg.UseRedisCache() {
		if redisClient != nil {
			return cache.NewRedisStore(redisClient, ""), "redis"
		}
		logger.Warn("redis cache requested but unavailable, using memory cache")
	}
	return cache.NewMemoryStore(), "memory"
}

// ConnectPostgres opens and pings a pool. An empty URL or a failed
// connection returns nil so callers can degrade to log-only persistence.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Warn("postgres pool not created", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildInteractionStore persists interactions to postgres when a pool is
// available and to the structured log otherwise.
func BuildInteractionStore(pool *pgxpool.Pool, logger *logging.Logger) (interactions.Store, string) {
	if pool != nil {
		return interactions.NewPostgresStore(pool), "postgres"
	}
	return interactions.NewLogStore(logger), "log"
}
