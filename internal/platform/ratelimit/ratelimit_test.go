package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "registra/pkg/domain"
	"registra/pkg/testutil"
)

// =============================================================================
// Rate Limit Middleware Test Suite
// =============================================================================
// Justification for unit tests: the limiter must count per actor, return the
// standard limit headers, and fail open when the counter backend errors.
// All of that is deterministic against the in-memory store.

type RateLimitSuite struct {
	suite.Suite
	store  *InMemoryStore
	logger *slog.Logger
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *RateLimitSuite) handler(mw *Middleware) http.Handler {
	return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *RateLimitSuite) request(actorID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/students", nil)
	if actorID != "" {
		req = testutil.WithActor(req, actorID, id.NewTenantID(), id.RoleAdmin)
	}
	return req
}

func (s *RateLimitSuite) TestEnforcesLimit() {
	mw := New(s.store, s.logger, WithLimit(3, time.Minute))
	h := s.handler(mw)

	s.Run("requests within the budget pass", func() {
		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, s.request("admin-1"))
			s.Equal(http.StatusOK, rec.Code)
		}
	})

	s.Run("the request over budget gets 429 with headers", func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, s.request("admin-1"))

		s.Equal(http.StatusTooManyRequests, rec.Code)
		s.Equal("3", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))
		s.NotEmpty(rec.Header().Get("Retry-After"))
		s.Contains(rec.Body.String(), "rate_limit_exceeded")
	})

	s.Run("another actor has an independent budget", func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, s.request("bursar-1"))
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *RateLimitSuite) TestKeysUnauthenticatedByAddress() {
	mw := New(s.store, s.logger, WithLimit(1, time.Minute))
	h := s.handler(mw)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, s.request(""))
	s.Equal(http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, s.request(""))
	s.Equal(http.StatusTooManyRequests, second.Code, "same address shares one budget")
}

func (s *RateLimitSuite) TestFailsOpenOnStoreError() {
	mw := New(failingStore{}, s.logger, WithLimit(1, time.Minute))
	h := s.handler(mw)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, s.request("admin-1"))
		s.Equal(http.StatusOK, rec.Code, "a broken counter must not reject traffic")
	}
}

func (s *RateLimitSuite) TestDisabled() {
	mw := New(s.store, s.logger, WithLimit(1, time.Minute), WithDisabled(true))
	h := s.handler(mw)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, s.request("admin-1"))
		s.Equal(http.StatusOK, rec.Code)
	}
}

func (s *RateLimitSuite) TestWindowSlides() {
	store := NewInMemoryStore()

	first, err := store.Allow(context.Background(), "actor:a", 1, 30*time.Millisecond)
	s.Require().NoError(err)
	s.True(first.Allowed)

	blocked, err := store.Allow(context.Background(), "actor:a", 1, 30*time.Millisecond)
	s.Require().NoError(err)
	s.False(blocked.Allowed)

	time.Sleep(40 * time.Millisecond)

	again, err := store.Allow(context.Background(), "actor:a", 1, 30*time.Millisecond)
	s.Require().NoError(err)
	s.True(again.Allowed, "expired timestamps free the budget")
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, errors.New("counter backend down")
}
