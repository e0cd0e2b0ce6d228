package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/pkg/config"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisRunCache caches run snapshots for status polling. Entries are
// short-lived; the database stays the source of truth.
type RedisRunCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRunCache creates a redis-backed run cache
func NewRedisRunCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisRunCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &RedisRunCache{client: client, ttl: ttl, logger: logger}
}

func runKey(runID uuid.UUID) string {
	return "run:status:" + runID.String()
}

// SetRun stores a run snapshot. Cache failures are logged and swallowed;
// the caller never depends on the cache.
func (c *RedisRunCache) SetRun(ctx context.Context, run *entities.AnalysisRun) {
	data, err := json.Marshal(run)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, runKey(run.ID), data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("run cache write failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
}

// GetRun retrieves a cached run snapshot
func (c *RedisRunCache) GetRun(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, bool) {
	data, err := c.client.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		return nil, false
	}
	var run entities.AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false
	}
	return &run, true
}

// InvalidateRun drops the cached snapshot, forcing the next status read
// back to the database
func (c *RedisRunCache) InvalidateRun(ctx context.Context, runID uuid.UUID) {
	if err := c.client.Del(ctx, runKey(runID)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("run cache invalidation failed",
			zap.String("run_id", runID.String()),
			zap.Error(err),
		)
	}
}
