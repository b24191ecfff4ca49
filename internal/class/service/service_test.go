package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registra/internal/class/models"
	"registra/internal/class/store"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/audit"
	auditPublisher "registra/pkg/platform/audit/publisher"
	auditMemory "registra/pkg/platform/audit/store/memory"
	"registra/pkg/requestcontext"
)

// =============================================================================
// Class Service Test Suite
// =============================================================================
// Justification for unit tests: the per-(tenant, term) name uniqueness rule
// and the deactivation transition are enforced across the store and service
// together and need coverage independent of any database.

type ClassServiceSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	auditStore *auditMemory.InMemoryStore
	service    *Service

	tenantID id.TenantID
	term     id.Term
	now      time.Time
}

func TestClassServiceSuite(t *testing.T) {
	suite.Run(t, new(ClassServiceSuite))
}

func (s *ClassServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.auditStore = auditMemory.NewInMemoryStore()
	s.tenantID = id.NewTenantID()
	s.term = id.Term("2026-T1")
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.service = New(s.store,
		WithAuditPublisher(auditPublisher.NewPublisher(s.auditStore)),
	)
}

func (s *ClassServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
		ActorID:  "admin-1",
		TenantID: s.tenantID,
		Role:     id.RoleAdmin,
	})
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ClassServiceSuite) create(name string, term id.Term) *models.Class {
	class, err := s.service.Create(s.ctx(), CreateInput{
		TenantID:  s.tenantID,
		Name:      name,
		Term:      term,
		Capacity:  30,
		TeacherID: "teacher-1",
	})
	s.Require().NoError(err)
	return class
}

// =============================================================================
// Create Tests
// =============================================================================

func (s *ClassServiceSuite) TestCreate() {
	s.Run("creates an active class and audits it", func() {
		class := s.create("Primary 4 Blue", s.term)

		s.True(class.Active)
		s.Equal(30, class.Capacity)

		events, err := s.auditStore.ListByEntity(s.ctx(), audit.EntityClass, class.ID.String())
		s.NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventClassCreated), events[0].Action)
	})

	s.Run("duplicate name in the same term conflicts", func() {
		s.create("Primary 5 Red", s.term)

		_, err := s.service.Create(s.ctx(), CreateInput{
			TenantID: s.tenantID,
			Name:     "Primary 5 Red",
			Term:     s.term,
			Capacity: 25,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("same name in another term is allowed", func() {
		s.create("Primary 6 Green", s.term)
		class := s.create("Primary 6 Green", id.Term("2026-T2"))
		s.Equal(id.Term("2026-T2"), class.Term)
	})

	s.Run("non-positive capacity is rejected", func() {
		_, err := s.service.Create(s.ctx(), CreateInput{
			TenantID: s.tenantID,
			Name:     "Primary 7",
			Term:     s.term,
			Capacity: 0,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Deactivate Tests
// =============================================================================

func (s *ClassServiceSuite) TestDeactivate() {
	s.Run("marks the class inactive", func() {
		class := s.create("Primary 4 Blue", s.term)

		deactivated, err := s.service.Deactivate(s.ctx(), class.ID)
		s.Require().NoError(err)
		s.False(deactivated.Active)
	})

	s.Run("deactivating twice is an invalid state", func() {
		class := s.create("Primary 5 Red", s.term)
		_, err := s.service.Deactivate(s.ctx(), class.ID)
		s.Require().NoError(err)

		_, err = s.service.Deactivate(s.ctx(), class.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Read Tests
// =============================================================================

func (s *ClassServiceSuite) TestReads() {
	s.Run("cross-tenant get reads as not found", func() {
		class := s.create("Primary 4 Blue", s.term)

		foreignCtx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
			ActorID:  "admin-2",
			TenantID: id.NewTenantID(),
			Role:     id.RoleAdmin,
		})
		_, err := s.service.Get(foreignCtx, class.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("list by term orders by name and filters terms", func() {
		s.create("Primary 5 Red", s.term)
		s.create("Primary 3 Gold", s.term)
		s.create("Primary 3 Gold", id.Term("2026-T2"))

		classes, err := s.service.ListByTerm(s.ctx(), s.tenantID, s.term)
		s.Require().NoError(err)
		s.Require().GreaterOrEqual(len(classes), 2)
		s.Equal("Primary 3 Gold", classes[0].Name)
		for _, class := range classes {
			s.Equal(s.term, class.Term)
		}
	})

	s.Run("list without a term is rejected", func() {
		_, err := s.service.ListByTerm(s.ctx(), s.tenantID, id.Term(""))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
