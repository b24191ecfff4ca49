package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registra/internal/student/models"
	"registra/internal/student/store"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/audit"
	auditPublisher "registra/pkg/platform/audit/publisher"
	auditMemory "registra/pkg/platform/audit/store/memory"
	"registra/pkg/requestcontext"
)

// =============================================================================
// Student Service Test Suite
// =============================================================================
// Justification for unit tests: registration uniqueness, the one-way withdrawn
// transition, and the cross-tenant not-found masking are all service-level
// rules invisible to integration tests against a single tenant.

type StudentServiceSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	auditStore *auditMemory.InMemoryStore
	service    *Service

	tenantID id.TenantID
	now      time.Time
}

func TestStudentServiceSuite(t *testing.T) {
	suite.Run(t, new(StudentServiceSuite))
}

func (s *StudentServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.auditStore = auditMemory.NewInMemoryStore()
	s.tenantID = id.NewTenantID()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.service = New(s.store,
		WithAuditPublisher(auditPublisher.NewPublisher(s.auditStore)),
	)
}

func (s *StudentServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
		ActorID:  "admin-1",
		TenantID: s.tenantID,
		Role:     id.RoleAdmin,
	})
	return requestcontext.WithTime(ctx, s.now)
}

func (s *StudentServiceSuite) register(admissionNo string) *models.Student {
	student, err := s.service.Register(s.ctx(), RegisterInput{
		TenantID:    s.tenantID,
		FirstName:   "Amina",
		LastName:    "Diallo",
		AdmissionNo: admissionNo,
	})
	s.Require().NoError(err)
	return student
}

// =============================================================================
// Register Tests
// =============================================================================

func (s *StudentServiceSuite) TestRegister() {
	s.Run("creates an enrolled student and audits it", func() {
		student := s.register("ADM-2026-00001")

		s.Equal(models.StudentStatusEnrolled, student.Status)
		s.Equal("Diallo, Amina", student.DisplayName())
		s.Equal(s.now, student.CreatedAt)

		events, err := s.auditStore.ListByEntity(s.ctx(), audit.EntityStudent, student.ID.String())
		s.NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventStudentRegistered), events[0].Action)
		s.True(events[0].Success)
	})

	s.Run("duplicate admission number conflicts", func() {
		s.register("ADM-2026-00002")

		_, err := s.service.Register(s.ctx(), RegisterInput{
			TenantID:    s.tenantID,
			FirstName:   "Kwame",
			LastName:    "Mensah",
			AdmissionNo: "ADM-2026-00002",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("blank names are rejected", func() {
		_, err := s.service.Register(s.ctx(), RegisterInput{
			TenantID:    s.tenantID,
			FirstName:   "   ",
			LastName:    "Mensah",
			AdmissionNo: "ADM-2026-00003",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("registering into a foreign tenant is forbidden", func() {
		_, err := s.service.Register(s.ctx(), RegisterInput{
			TenantID:    id.NewTenantID(),
			FirstName:   "Kwame",
			LastName:    "Mensah",
			AdmissionNo: "ADM-2026-00004",
		})
		s.Error(err)
	})
}

// =============================================================================
// Withdraw Tests
// =============================================================================

func (s *StudentServiceSuite) TestWithdraw() {
	s.Run("flips status and keeps the record queryable", func() {
		student := s.register("ADM-2026-00010")

		withdrawn, err := s.service.Withdraw(s.ctx(), student.ID)
		s.Require().NoError(err)
		s.Equal(models.StudentStatusWithdrawn, withdrawn.Status)

		got, err := s.service.Get(s.ctx(), student.ID)
		s.NoError(err)
		s.Equal(models.StudentStatusWithdrawn, got.Status)
	})

	s.Run("withdrawing twice is an invalid state", func() {
		student := s.register("ADM-2026-00011")
		_, err := s.service.Withdraw(s.ctx(), student.ID)
		s.Require().NoError(err)

		_, err = s.service.Withdraw(s.ctx(), student.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown student is not found", func() {
		_, err := s.service.Withdraw(s.ctx(), id.NewStudentID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Read Tests
// =============================================================================

func (s *StudentServiceSuite) TestReads() {
	s.Run("cross-tenant get reads as not found", func() {
		student := s.register("ADM-2026-00020")

		foreignCtx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
			ActorID:  "admin-2",
			TenantID: id.NewTenantID(),
			Role:     id.RoleAdmin,
		})
		_, err := s.service.Get(foreignCtx, student.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("platform admin reads across tenants", func() {
		student := s.register("ADM-2026-00021")

		platformCtx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
			ActorID:  "platform-1",
			TenantID: id.NewTenantID(),
			Role:     id.RolePlatformAdmin,
		})
		got, err := s.service.Get(platformCtx, student.ID)
		s.NoError(err)
		s.Equal(student.ID, got.ID)
	})

	s.Run("list orders by display name", func() {
		_, err := s.service.Register(s.ctx(), RegisterInput{
			TenantID: s.tenantID, FirstName: "Zara", LastName: "Okafor", AdmissionNo: "ADM-2026-00030",
		})
		s.Require().NoError(err)
		_, err = s.service.Register(s.ctx(), RegisterInput{
			TenantID: s.tenantID, FirstName: "Amina", LastName: "Abebe", AdmissionNo: "ADM-2026-00031",
		})
		s.Require().NoError(err)

		students, err := s.service.List(s.ctx(), s.tenantID)
		s.Require().NoError(err)
		s.Require().GreaterOrEqual(len(students), 2)
		s.Equal("Abebe, Amina", students[0].DisplayName())
	})
}
