package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registra/internal/attendance/models"
	attendanceStore "registra/internal/attendance/store"
	classmodels "registra/internal/class/models"
	classStore "registra/internal/class/store"
	enrollmentmodels "registra/internal/enrollment/models"
	enrollmentStore "registra/internal/enrollment/store"
	studentmodels "registra/internal/student/models"
	studentStore "registra/internal/student/store"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/audit"
	auditPublisher "registra/pkg/platform/audit/publisher"
	auditMemory "registra/pkg/platform/audit/store/memory"
	"registra/pkg/requestcontext"
)

// =============================================================================
// Attendance Service Test Suite
// =============================================================================
// Justification for unit tests: batch validation, idempotent re-marking, and
// placeholder synthesis all depend on the interplay between the presence
// store and the membership roster, which needs deterministic in-memory
// coverage.

type AttendanceServiceSuite struct {
	suite.Suite
	records     *attendanceStore.InMemoryStore
	enrollments *enrollmentStore.InMemoryStore
	classes     *classStore.InMemoryStore
	students    *studentStore.InMemoryStore
	auditStore  *auditMemory.InMemoryStore
	service     *Service

	tenantID    id.TenantID
	now         time.Time
	day         time.Time
	class       *classmodels.Class
	admissionNo int
}

func TestAttendanceServiceSuite(t *testing.T) {
	suite.Run(t, new(AttendanceServiceSuite))
}

func (s *AttendanceServiceSuite) SetupTest() {
	s.records = attendanceStore.NewInMemoryStore()
	s.enrollments = enrollmentStore.NewInMemoryStore()
	s.classes = classStore.NewInMemoryStore()
	s.students = studentStore.NewInMemoryStore()
	s.auditStore = auditMemory.NewInMemoryStore()

	s.tenantID = id.NewTenantID()
	s.now = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	s.day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.admissionNo = 0

	var err error
	s.class, err = classmodels.NewClass(id.NewClassID(), s.tenantID, "Primary 4 Blue", id.Term("2026-T1"), 30, "teacher-1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.classes.Create(context.Background(), s.class))

	s.service = New(s.records, s.enrollments, s.classes, s.students,
		WithAuditPublisher(auditPublisher.NewPublisher(s.auditStore)),
	)
}

// SetupSubTest resets the stores for each s.Run subtest; every subtest
// enrolls its own roster and asserts against an otherwise empty store.
func (s *AttendanceServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *AttendanceServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
		ActorID:  "teacher-1",
		TenantID: s.tenantID,
		Role:     id.RoleTeacher,
	})
	return requestcontext.WithTime(ctx, s.now)
}

// enrolledStudent registers a student and puts an active enrollment in the
// class for them.
func (s *AttendanceServiceSuite) enrolledStudent(firstName string) *studentmodels.Student {
	s.admissionNo++
	student, err := studentmodels.NewStudent(id.NewStudentID(), s.tenantID, firstName, "Diallo",
		fmt.Sprintf("ADM-2026-%05d", s.admissionNo), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.students.Create(context.Background(), student))

	enrollment, err := enrollmentmodels.NewEnrollment(id.NewEnrollmentID(), s.tenantID, student.ID, s.class.ID, s.class.Term, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.enrollments.Create(context.Background(), enrollment))
	return student
}

// =============================================================================
// MarkClassAttendance Tests
// =============================================================================

func (s *AttendanceServiceSuite) TestMarkClassAttendance() {
	s.Run("records the whole batch with denormalized class and term", func() {
		a := s.enrolledStudent("Amina")
		b := s.enrolledStudent("Binta")

		records, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.now, // time-of-day must be stripped
			Entries: []Entry{
				{StudentID: a.ID, Status: models.StatusPresent},
				{StudentID: b.ID, Status: models.StatusLate, Notes: "bus delay"},
			},
		})
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		for _, record := range records {
			s.Equal(s.day, record.Day)
			s.Equal(s.class.ID, record.ClassID)
			s.Equal(s.class.Term, record.Term)
			s.Equal("teacher-1", record.RecordedBy)
		}

		events, err := s.auditStore.ListByEntity(s.ctx(), audit.EntityAttendance, s.class.ID.String())
		s.NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventAttendanceMarked), events[0].Action)
		s.Contains(string(events[0].After), `"total":2`)
	})

	s.Run("re-submitting the same batch overwrites without duplicates", func() {
		student := s.enrolledStudent("Amina")

		_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.day,
			Entries: []Entry{{StudentID: student.ID, Status: models.StatusAbsent}},
		})
		s.Require().NoError(err)

		_, err = s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.day,
			Entries: []Entry{{StudentID: student.ID, Status: models.StatusPresent}},
		})
		s.Require().NoError(err)

		stored, err := s.records.ListByStudentRange(s.ctx(), student.ID, s.day, s.day)
		s.NoError(err)
		s.Require().Len(stored, 1)
		s.Equal(models.StatusPresent, stored[0].Status)
	})

	s.Run("validation names every offender at once", func() {
		enrolled := s.enrolledStudent("Amina")
		stranger := id.NewStudentID()

		_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.day,
			Entries: []Entry{
				{StudentID: enrolled.ID, Status: models.StatusPresent},
				{StudentID: enrolled.ID, Status: models.StatusAbsent},
				{StudentID: stranger, Status: models.StatusPresent},
			},
		})
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), stranger.String())
		s.Contains(err.Error(), "duplicate")

		// Nothing landed.
		stored, listErr := s.records.ListByClassDay(s.ctx(), s.class.ID, s.day)
		s.NoError(listErr)
		s.Empty(stored)
	})

	s.Run("unset status cannot be recorded", func() {
		student := s.enrolledStudent("Amina")

		_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.day,
			Entries: []Entry{{StudentID: student.ID, Status: models.StatusUnset}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("empty batch is rejected", func() {
		_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{ClassID: s.class.ID, Day: s.day})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Read Tests
// =============================================================================

func (s *AttendanceServiceSuite) TestGetClassAttendance() {
	s.Run("synthesizes unset placeholders for unmarked roster members", func() {
		marked := s.enrolledStudent("Amina")
		unmarked := s.enrolledStudent("Binta")

		_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
			ClassID: s.class.ID,
			Day:     s.day,
			Entries: []Entry{{StudentID: marked.ID, Status: models.StatusPresent}},
		})
		s.Require().NoError(err)

		records, err := s.service.GetClassAttendance(s.ctx(), s.class.ID, s.day)
		s.Require().NoError(err)
		s.Require().Len(records, 2)

		byStudent := make(map[id.StudentID]models.Status)
		for _, record := range records {
			byStudent[record.StudentID] = record.Status
		}
		s.Equal(models.StatusPresent, byStudent[marked.ID])
		s.Equal(models.StatusUnset, byStudent[unmarked.ID])
	})

	s.Run("fully unmarked roster comes back as placeholders", func() {
		s.enrolledStudent("Amina")
		s.enrolledStudent("Binta")

		records, err := s.service.GetClassAttendance(s.ctx(), s.class.ID, s.day)
		s.Require().NoError(err)
		s.Len(records, 2)
		for _, record := range records {
			s.Equal(models.StatusUnset, record.Status)
			s.True(record.ID.IsNil())
		}
	})
}

func (s *AttendanceServiceSuite) TestStatistics() {
	s.Run("percentage rounds present over total", func() {
		student := s.enrolledStudent("Amina")

		days := []struct {
			offset int
			status models.Status
		}{
			{0, models.StatusPresent},
			{1, models.StatusPresent},
			{2, models.StatusAbsent},
		}
		for _, d := range days {
			_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
				ClassID: s.class.ID,
				Day:     s.day.AddDate(0, 0, d.offset),
				Entries: []Entry{{StudentID: student.ID, Status: d.status}},
			})
			s.Require().NoError(err)
		}

		stats, err := s.service.GetStatistics(s.ctx(), student.ID, s.day, s.day.AddDate(0, 0, 2))
		s.Require().NoError(err)
		s.Equal(2, stats.Present)
		s.Equal(1, stats.Absent)
		s.Equal(3, stats.Total)
		s.Equal(67, stats.Percentage) // round(2/3 * 100)
	})

	s.Run("empty range yields zero percentage", func() {
		student := s.enrolledStudent("Binta")

		stats, err := s.service.GetStatistics(s.ctx(), student.ID, s.day, s.day)
		s.Require().NoError(err)
		s.Equal(0, stats.Total)
		s.Equal(0, stats.Percentage)
	})

	s.Run("inverted range is rejected", func() {
		student := s.enrolledStudent("Chidi")

		_, err := s.service.GetStatistics(s.ctx(), student.ID, s.day.AddDate(0, 0, 1), s.day)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AttendanceServiceSuite) TestClassReport() {
	s.Run("aggregates per student sorted by display name", func() {
		// Display names sort "Diallo, ..." by first name here.
		zara := s.enrolledStudent("Zara")
		amina := s.enrolledStudent("Amina")

		for offset := 0; offset < 2; offset++ {
			_, err := s.service.MarkClassAttendance(s.ctx(), MarkInput{
				ClassID: s.class.ID,
				Day:     s.day.AddDate(0, 0, offset),
				Entries: []Entry{
					{StudentID: zara.ID, Status: models.StatusPresent},
					{StudentID: amina.ID, Status: models.StatusAbsent},
				},
			})
			s.Require().NoError(err)
		}

		report, err := s.service.GetClassReport(s.ctx(), s.class.ID, s.day, s.day.AddDate(0, 0, 1))
		s.Require().NoError(err)
		s.Require().Len(report, 2)
		s.Equal(amina.ID, report[0].StudentID)
		s.Equal("Diallo, Amina", report[0].DisplayName)
		s.Equal(2, report[0].Stats.Absent)
		s.Equal(zara.ID, report[1].StudentID)
		s.Equal(2, report[1].Stats.Present)
		s.Equal(100, report[1].Stats.Percentage)
	})
}
