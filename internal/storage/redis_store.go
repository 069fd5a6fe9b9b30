package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore caches provider lookups and run bookkeeping between
// ingestion cycles: resolved owner ids (a resolve call per channel per
// run adds up against the rate limit) and per-table refresh watermarks.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func resolveKey(source, name string) string {
	return fmt.Sprintf("ingest:resolve:%s:%s", source, name)
}

func refreshKey(table string) string {
	return fmt.Sprintf("ingest:refreshed:%s", table)
}

// GetOwnerID returns a cached resolution, if any.
func (s *RedisStore) GetOwnerID(ctx context.Context, source, name string) (int64, bool, error) {
	res, err := s.rdb.Get(ctx, resolveKey(source, name)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(res, 10, 64)
	if err != nil {
		return 0, false, nil // stale junk; treat as a miss
	}
	return id, true, nil
}

// SetOwnerID caches a resolution for the given duration.
func (s *RedisStore) SetOwnerID(ctx context.Context, source, name string, id int64, ttl time.Duration) error {
	return s.rdb.Set(ctx, resolveKey(source, name), strconv.FormatInt(id, 10), ttl).Err()
}

// MarkRefreshed records when a topic table last completed a refresh.
func (s *RedisStore) MarkRefreshed(ctx context.Context, table string, at time.Time) error {
	return s.rdb.Set(ctx, refreshKey(table), at.UTC().Format(time.RFC3339), 0).Err()
}

// LastRefreshed returns the last completed refresh for a topic table, so
// the daily loop can log gaps after downtime.
func (s *RedisStore) LastRefreshed(ctx context.Context, table string) (time.Time, bool, error) {
	res, err := s.rdb.Get(ctx, refreshKey(table)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, res)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
