//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registra/internal/enrollment/models"
	"registra/internal/enrollment/store"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	"registra/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore

	tenantID  id.TenantID
	studentID id.StudentID
	classID   id.ClassID
	term      id.Term
	now       time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "enrollments", "classes", "students")
	s.Require().NoError(err)

	s.tenantID = id.NewTenantID()
	s.studentID = id.NewStudentID()
	s.classID = id.NewClassID()
	s.term = id.Term("2026-T1")
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	s.seedStudent(s.studentID)
	s.seedClass(s.classID)
}

func (s *PostgresStoreSuite) seedStudent(studentID id.StudentID) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO students (id, tenant_id, first_name, last_name, admission_no, status, created_at, updated_at)
		VALUES ($1, $2, 'Amina', 'Diallo', $3, 'enrolled', $4, $4)
	`, uuid.UUID(studentID), uuid.UUID(s.tenantID), uuid.NewString(), s.now)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) seedClass(classID id.ClassID) {
	_, err := s.postgres.DB.Exec(`
		INSERT INTO classes (id, tenant_id, name, term, capacity, teacher_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 30, 'teacher-1', TRUE, $5, $5)
	`, uuid.UUID(classID), uuid.UUID(s.tenantID), uuid.NewString(), s.term.String(), s.now)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newEnrollment() *models.Enrollment {
	enrollment, err := models.NewEnrollment(id.NewEnrollmentID(), s.tenantID, s.studentID, s.classID, s.term, s.now)
	s.Require().NoError(err)
	return enrollment
}

// TestActiveUniqueness verifies the partial unique index: two active rows for
// the same (student, class, term) cannot coexist, but a terminal row does not
// block a new active one.
func (s *PostgresStoreSuite) TestActiveUniqueness() {
	ctx := context.Background()

	first := s.newEnrollment()
	s.Require().NoError(s.store.Create(ctx, first))

	duplicate := s.newEnrollment()
	err := s.store.Create(ctx, duplicate)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	first.ApplyWithdrawal("left mid-term", s.now.Add(time.Hour))
	s.Require().NoError(s.store.TransitionFromActive(ctx, first))

	again := s.newEnrollment()
	s.NoError(s.store.Create(ctx, again))
}

// TestConcurrentEnroll races many creates for the same key; the index must let
// exactly one through.
func (s *PostgresStoreSuite) TestConcurrentEnroll() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var created atomic.Int32
	var conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enrollment, err := models.NewEnrollment(id.NewEnrollmentID(), s.tenantID, s.studentID, s.classID, s.term, s.now)
			if err != nil {
				return
			}
			switch err := s.store.Create(ctx, enrollment); {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load(), "exactly one enrollment should win")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

// TestTransitionFromActive verifies the conditional update: the first
// transition wins and the second sees the row is no longer active.
func (s *PostgresStoreSuite) TestTransitionFromActive() {
	ctx := context.Background()

	enrollment := s.newEnrollment()
	s.Require().NoError(s.store.Create(ctx, enrollment))

	completed := *enrollment
	completed.ApplyCompletion("A", s.now.Add(time.Hour))
	s.Require().NoError(s.store.TransitionFromActive(ctx, &completed))

	withdrawn := *enrollment
	withdrawn.ApplyWithdrawal("too late", s.now.Add(2*time.Hour))
	err := s.store.TransitionFromActive(ctx, &withdrawn)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	missing := s.newEnrollment()
	missing.ApplyWithdrawal("never stored", s.now)
	err = s.store.TransitionFromActive(ctx, missing)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestRoundTrip verifies nullable columns survive a store round trip.
func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()

	enrollment := s.newEnrollment()
	s.Require().NoError(s.store.Create(ctx, enrollment))

	successor := id.NewEnrollmentID()
	enrollment.ApplyTransfer(successor, "moved sections", s.now.Add(time.Hour))
	s.Require().NoError(s.store.TransitionFromActive(ctx, enrollment))

	got, err := s.store.FindByID(ctx, enrollment.ID)
	s.Require().NoError(err)
	s.Equal(enrollment.Status, got.Status)
	s.Equal("moved sections", got.StatusReason)
	s.Require().NotNil(got.SuccessorID)
	s.Equal(successor, *got.SuccessorID)
	s.Require().NotNil(got.StatusChangedAt)
}
