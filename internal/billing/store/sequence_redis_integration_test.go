//go:build integration

package store_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"registra/internal/billing/store"
	id "registra/pkg/domain"
	"registra/pkg/testutil/containers"
)

type RedisSequenceSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisSequenceStore
}

func TestRedisSequenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSequenceSuite))
}

func (s *RedisSequenceSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedisSequences(s.redis.Client)
}

func (s *RedisSequenceSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestConcurrentNext verifies INCR atomicity: every value in 1..N exactly once.
func (s *RedisSequenceSuite) TestConcurrentNext() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	const goroutines = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	values := make([]int64, 0, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := s.store.Next(ctx, tenantID, store.SequencePayment, 2026)
			s.Require().NoError(err)
			mu.Lock()
			values = append(values, next)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	s.Require().Len(values, goroutines)
	for i, v := range values {
		s.Equal(int64(i+1), v)
	}
}

// TestKeyIsolation verifies the counter key includes tenant, kind, and year.
func (s *RedisSequenceSuite) TestKeyIsolation() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	_, err := s.store.Next(ctx, tenantID, store.SequenceInvoice, 2026)
	s.Require().NoError(err)

	next, err := s.store.Next(ctx, tenantID, store.SequenceInvoice, 2027)
	s.Require().NoError(err)
	s.Equal(int64(1), next)
}
