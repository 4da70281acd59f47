package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
)

const (
	expiryIndexKey   = "demo:projects:expiry" // Sorted set of project ids scored by expiry (unix ms)
	projectKeyPrefix = "demo:project:"        // Hash per project: demo:project:{project_id}
	projectGrace     = 7 * 24 * time.Hour     // Hash TTL past expiry in case the sweeper never runs
)

// RedisStore keeps tracking rows in Redis: a hash per project plus a sorted
// set index used to find expired projects.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Insert stores a tracking row. An existing row for the same project is left
// untouched.
func (s *RedisStore) Insert(ctx context.Context, rec domain.TrackingRecord) error {
	key := s.projectKey(rec.ProjectID)

	created, err := s.client.HSetNX(ctx, key, "kind", string(rec.Kind)).Result()
	if err != nil {
		return fmt.Errorf("failed to insert demo project: %w", err)
	}
	if !created {
		return nil
	}

	ttl := time.Until(rec.ExpiresAt) + projectGrace
	if ttl <= 0 {
		ttl = projectGrace
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "expires_at", rec.ExpiresAt.UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, key, ttl)
	pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
		Score:  float64(rec.ExpiresAt.UnixMilli()),
		Member: rec.ProjectID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		// Drop the half-written hash so a retry can claim the project again.
		if delErr := s.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			return fmt.Errorf("failed to index demo project: %w (rollback: %v)", err, delErr)
		}
		return fmt.Errorf("failed to index demo project: %w", err)
	}
	return nil
}

// ListExpired returns up to limit rows whose expiry is at or before now,
// oldest first.
func (s *RedisStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.TrackingRecord, error) {
	ids, err := s.client.ZRangeByScoreWithScores(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired demo projects: %w", err)
	}

	out := make([]domain.TrackingRecord, 0, len(ids))
	for _, z := range ids {
		projectID, ok := z.Member.(string)
		if !ok {
			continue
		}

		rec := domain.TrackingRecord{
			ProjectID: projectID,
			ExpiresAt: time.UnixMilli(int64(z.Score)).UTC(),
		}

		kind, err := s.client.HGet(ctx, s.projectKey(projectID), "kind").Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to get demo project %s: %w", projectID, err)
		}
		rec.Kind = domain.SourceKind(kind)

		out = append(out, rec)
	}

	return out, nil
}

// Delete removes the tracking row and its index entry.
func (s *RedisStore) Delete(ctx context.Context, projectID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.projectKey(projectID))
	pipe.ZRem(ctx, expiryIndexKey, projectID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete demo project: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) projectKey(projectID string) string {
	return fmt.Sprintf("%s%s", projectKeyPrefix, projectID)
}
