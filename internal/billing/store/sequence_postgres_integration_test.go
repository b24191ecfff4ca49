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

type PostgresSequenceSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresSequenceStore
}

func TestPostgresSequenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSequenceSuite))
}

func (s *PostgresSequenceSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresSequences(s.postgres.DB)
}

func (s *PostgresSequenceSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "sequences")
	s.Require().NoError(err)
}

// TestConcurrentNext races many allocations on one counter. The upsert row
// lock must hand out every value in 1..N exactly once.
func (s *PostgresSequenceSuite) TestConcurrentNext() {
	ctx := context.Background()
	tenantID := id.NewTenantID()
	const goroutines = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	values := make([]int64, 0, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := s.store.Next(ctx, tenantID, store.SequenceInvoice, 2026)
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
		s.Equal(int64(i+1), v, "sequence must be gap-free and duplicate-free")
	}
}

// TestCounterIsolation verifies separate counters per tenant, kind, and year.
func (s *PostgresSequenceSuite) TestCounterIsolation() {
	ctx := context.Background()
	tenantA := id.NewTenantID()
	tenantB := id.NewTenantID()

	first, err := s.store.Next(ctx, tenantA, store.SequenceInvoice, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), first)

	second, err := s.store.Next(ctx, tenantA, store.SequenceInvoice, 2026)
	s.Require().NoError(err)
	s.Equal(int64(2), second)

	otherTenant, err := s.store.Next(ctx, tenantB, store.SequenceInvoice, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), otherTenant)

	otherKind, err := s.store.Next(ctx, tenantA, store.SequencePayment, 2026)
	s.Require().NoError(err)
	s.Equal(int64(1), otherKind)

	otherYear, err := s.store.Next(ctx, tenantA, store.SequenceInvoice, 2027)
	s.Require().NoError(err)
	s.Equal(int64(1), otherYear)
}
