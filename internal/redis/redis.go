// Package redis keeps shared digest state in Redis: the OAuth token, run
// records and the run lock used when several schedulers share one account.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces every key this package writes.
	KeyPrefix = "dida-digest:"
	// TokenKey holds the serialized OAuth token.
	TokenKey = KeyPrefix + "token"
	// RunKeyPrefix is the key prefix for run records.
	RunKeyPrefix = KeyPrefix + "run:"
	// LockKeyPrefix is the key prefix for run locks.
	LockKeyPrefix = KeyPrefix + "lock:"
	// DefaultRedisURL is the default Redis connection URL.
	DefaultRedisURL = "redis://localhost:6379"
	// RunRetention is how long run records are kept.
	RunRetention = 7 * 24 * time.Hour
)

// Client wraps a Redis client with digest-specific operations.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the Redis server at url.
func NewClient(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		url = DefaultRedisURL
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// RunRecord summarizes one digest run.
type RunRecord struct {
	RunID     string         `json:"run_id"`
	Timestamp int64          `json:"timestamp"` // unix millis
	Status    string         `json:"status"`
	Counts    map[string]int `json:"counts,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// SetRun stores a run record. Records expire after RunRetention.
func (c *Client) SetRun(ctx context.Context, rec *RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run record has no run ID")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, RunKeyPrefix+rec.RunID, data, RunRetention).Err()
}

// GetRuns returns stored run records, newest first.
func (c *Client) GetRuns(ctx context.Context) ([]*RunRecord, error) {
	keys, err := c.scanKeys(ctx, RunKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	runs := make([]*RunRecord, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue
		}

		var rec RunRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			continue
		}
		runs = append(runs, &rec)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp > runs[j].Timestamp
	})
	return runs, nil
}

// LastRun returns the most recent run record, or nil when none is stored.
func (c *Client) LastRun(ctx context.Context) (*RunRecord, error) {
	runs, err := c.GetRuns(ctx)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// scanKeys scans for all keys matching a pattern.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		var batch []string
		var err error
		batch, cursor, err = c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return keys, err
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// RunHealth classifies the age of the last run.
type RunHealth string

const (
	RunHealthy RunHealth = "healthy"
	RunStale   RunHealth = "stale"
	RunMissing RunHealth = "missing"
)

// DetermineRunHealth reports whether the last run happened within maxAge of now.
func DetermineRunHealth(rec *RunRecord, maxAge time.Duration, now time.Time) RunHealth {
	if rec == nil {
		return RunMissing
	}
	if now.Sub(time.UnixMilli(rec.Timestamp)) <= maxAge {
		return RunHealthy
	}
	return RunStale
}

func isNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
