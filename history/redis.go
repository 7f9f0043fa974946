package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theoremus-urban-solutions/livetrack/feed"
)

// RedisStore persists trails as one sorted set per object, scored by
// timestamp in unix milliseconds. Retention is enforced on write with a range
// trim, so reads never see expired points for keys that are still receiving
// traffic.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int, retention time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{rdb: rdb, retention: retention}, nil
}

func trailKey(key feed.ObjectKey) string {
	return "trail:" + key.String()
}

// WriteBatch pipelines ZADDs for the batch and trims each touched key to the
// retention window.
func (s *RedisStore) WriteBatch(ctx context.Context, points []TrailPoint) error {
	if len(points) == 0 {
		return nil
	}
	cutoff := time.Now().Add(-s.retention).UnixMilli()

	pipe := s.rdb.Pipeline()
	touched := make(map[string]struct{}, len(points))
	for _, p := range points {
		member, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal trail point: %w", err)
		}
		k := trailKey(p.Key())
		touched[k] = struct{}{}
		pipe.ZAdd(ctx, k, redis.Z{
			Score:  float64(p.Timestamp.UnixMilli()),
			Member: string(member),
		})
	}
	for k := range touched {
		pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.Expire(ctx, k, s.retention*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis trail write: %w", err)
	}
	return nil
}

// Query returns points in [from, to] ordered by timestamp, at most limit.
func (s *RedisStore) Query(ctx context.Context, key feed.ObjectKey, from, to time.Time, limit int) ([]TrailPoint, error) {
	zrange := &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: strconv.FormatInt(to.UnixMilli(), 10),
	}
	if limit > 0 {
		zrange.Count = int64(limit)
	}
	members, err := s.rdb.ZRangeByScore(ctx, trailKey(key), zrange).Result()
	if err != nil {
		return nil, fmt.Errorf("redis trail query: %w", err)
	}
	out := make([]TrailPoint, 0, len(members))
	for _, m := range members {
		var p TrailPoint
		if err := json.Unmarshal([]byte(m), &p); err != nil {
			// One corrupt member should not hide the rest of the trail.
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Close releases the client connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
