// internal/archive/redis_archive.go

// Package archive persists finished run summaries in Redis so past runs can
// be inspected after the process exits.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/cmatc13/txpilot/internal/submitter"
	"github.com/cmatc13/txpilot/pkg/config"
)

const (
	// Run key prefix for storing run summaries
	runKeyPrefix = "run:"

	// Sorted set of run IDs scored by start time
	runIndexKey = "runs:by_time"

	// Sorted set of wallet balances scored by observation time
	balanceHistoryKey = "wallet:balance_history"
)

// RedisArchive stores run summaries in Redis.
type RedisArchive struct {
	client *redis.Client
}

// NewRedisArchive connects to Redis and verifies the connection.
func NewRedisArchive(cfg config.RedisConfig) (*RedisArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisArchive{client: client}, nil
}

// Close closes the Redis connection.
func (a *RedisArchive) Close() error {
	return a.client.Close()
}

// Ping checks the Redis connection.
func (a *RedisArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// SaveRun stores a run summary and indexes it by start time. The wallet
// balance observed after the run is appended to the balance history.
func (a *RedisArchive) SaveRun(ctx context.Context, summary *submitter.RunSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize run summary: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.Set(ctx, runKeyPrefix+summary.RunID, data, 0)
	pipe.ZAdd(ctx, runIndexKey, &redis.Z{
		Score:  float64(summary.StartedAt.Unix()),
		Member: summary.RunID,
	})
	pipe.ZAdd(ctx, balanceHistoryKey, &redis.Z{
		Score:  float64(summary.FinishedAt.Unix()),
		Member: fmt.Sprintf("%d:%d", summary.FinishedAt.Unix(), summary.BalanceAfter),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store run %s: %w", summary.RunID, err)
	}
	return nil
}

// GetRun retrieves a run summary by ID. It returns nil when the run is not
// archived.
func (a *RedisArchive) GetRun(ctx context.Context, runID string) (*submitter.RunSummary, error) {
	data, err := a.client.Get(ctx, runKeyPrefix+runID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	var summary submitter.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &summary, nil
}

// LatestRun returns the most recently started run, or nil when no run has
// been archived yet.
func (a *RedisArchive) LatestRun(ctx context.Context) (*submitter.RunSummary, error) {
	ids, err := a.client.ZRevRange(ctx, runIndexKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return a.GetRun(ctx, ids[0])
}

// ListRuns returns up to limit run IDs, newest first.
func (a *RedisArchive) ListRuns(ctx context.Context, limit int64) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	ids, err := a.client.ZRevRange(ctx, runIndexKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}
	return ids, nil
}
