package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// RedisSequenceStore allocates numbers with a single INCR per
// (tenant, kind, year) key. INCR is atomic on the server, so concurrent
// callers always see distinct values. Keys never expire; a counter is tiny
// and its history must survive the year.
type RedisSequenceStore struct {
	client *redis.Client
}

// NewRedisSequences constructs a Redis-backed sequence store.
func NewRedisSequences(client *redis.Client) *RedisSequenceStore {
	return &RedisSequenceStore{client: client}
}

func sequenceKey(tenantID id.TenantID, kind string, year int) string {
	return fmt.Sprintf("registra:seq:%s:%s:%d", tenantID, kind, year)
}

func (s *RedisSequenceStore) Next(ctx context.Context, tenantID id.TenantID, kind string, year int) (int64, error) {
	next, err := s.client.Incr(ctx, sequenceKey(tenantID, kind, year)).Result()
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %v: %w", kind, err, sentinel.ErrUnavailable)
	}
	return next, nil
}
