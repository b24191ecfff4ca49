// Package service is the membership ledger. It owns the enrollment state
// machine and the transfer chain, and is the only writer of enrollment rows.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	classmodels "registra/internal/class/models"
	enrollmentmetrics "registra/internal/enrollment/metrics"
	"registra/internal/enrollment/models"
	"registra/internal/enrollment/store"
	studentmodels "registra/internal/student/models"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	audit "registra/pkg/platform/audit"
	"registra/pkg/platform/sentinel"
	"registra/pkg/platform/tx"
	"registra/pkg/requestcontext"
)

// ClassReader is the slice of the class feature the ledger needs: loading the
// target of an enrollment or transfer.
type ClassReader interface {
	FindByID(ctx context.Context, classID id.ClassID) (*classmodels.Class, error)
}

// StudentReader resolves enrollment subjects.
type StudentReader interface {
	FindByID(ctx context.Context, studentID id.StudentID) (*studentmodels.Student, error)
}

// AuditPublisher emits structured audit events for every mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the membership ledger.
type Service struct {
	enrollments    store.Store
	classes        ClassReader
	students       StudentReader
	runner         tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *enrollmentmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *enrollmentmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// New constructs the membership ledger service.
func New(enrollments store.Store, classes ClassReader, students StudentReader, opts ...Option) *Service {
	s := &Service{enrollments: enrollments, classes: classes, students: students}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = tx.NewMemoryRunner(enrollments)
	}
	return s
}

// EnrollInput is the data needed to enroll a student into a class. Term may
// be empty, in which case it is derived from the class; when supplied it must
// match the class's term.
type EnrollInput struct {
	StudentID id.StudentID
	ClassID   id.ClassID
	Term      id.Term
}

// Enroll creates a new active enrollment.
//
// Fails with a conflict when an active enrollment already exists for
// (student, class, term) — that check is delegated to the storage layer's
// uniqueness constraint so concurrent enrollments cannot both succeed.
// A prior withdrawn or completed row for the same triple does not block
// re-enrollment.
func (s *Service) Enroll(ctx context.Context, in EnrollInput) (*models.Enrollment, error) {
	student, err := s.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}
	class, err := s.loadClass(ctx, in.ClassID)
	if err != nil {
		return nil, err
	}
	if student.TenantID != class.TenantID {
		return nil, dErrors.New(dErrors.CodeValidation, "student and class belong to different tenants")
	}
	if !class.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "class is inactive")
	}
	if !student.IsEnrolled() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "student is withdrawn")
	}

	// Term auto-derives from the class, then is re-validated against it.
	term := in.Term
	if term.IsNil() {
		term = class.Term
	}
	if term != class.Term {
		return nil, dErrors.Newf(dErrors.CodeValidation, "term %q does not match the class term %q", term, class.Term)
	}

	enrollment, err := models.NewEnrollment(id.NewEnrollmentID(), class.TenantID, in.StudentID, in.ClassID, term, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "student already has an active enrollment in this class for the term")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create enrollment")
		}
		s.emit(ctx, audit.EventStudentEnrolled, enrollment.ID.String(), class.TenantID, false, dErrors.MessageOf(err), nil, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventStudentEnrolled, enrollment.ID.String(), class.TenantID, true, "", nil, snapshot(enrollment))
	if s.metrics != nil {
		s.metrics.IncrementEnrollmentsCreated()
	}
	return enrollment, nil
}

// TransferResult carries both sides of a completed transfer.
type TransferResult struct {
	Source    *models.Enrollment
	Successor *models.Enrollment
}

// Transfer moves a student from their current class to a target class. The
// source row becomes transferred and a new active row is created on the
// target, carrying the target class's term, linked through the successor
// reference. Both writes run in one transaction; the conditional
// active-row update makes a retry after partial failure safe — the source
// transition cannot be applied twice.
func (s *Service) Transfer(ctx context.Context, enrollmentID id.EnrollmentID, targetClassID id.ClassID, reason string) (*TransferResult, error) {
	start := time.Now()

	source, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	if err := source.CanTransfer(); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, audit.EventEnrollmentTransferred, enrollmentID.String(), source.TenantID, false, dErrors.MessageOf(err), snapshot(source), nil)
		return nil, err
	}

	target, err := s.loadClass(ctx, targetClassID)
	if err != nil {
		return nil, err
	}
	if target.TenantID != source.TenantID {
		return nil, dErrors.New(dErrors.CodeValidation, "target class belongs to a different tenant")
	}
	if !target.Active {
		return nil, dErrors.New(dErrors.CodeInvalidState, "target class is inactive")
	}
	if target.ID == source.ClassID {
		return nil, dErrors.New(dErrors.CodeValidation, "target class matches the current class")
	}

	now := requestcontext.Now(ctx)
	successor, err := models.NewEnrollment(id.NewEnrollmentID(), source.TenantID, source.StudentID, target.ID, target.Term, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	before := snapshot(source)
	source.ApplyTransfer(successor.ID, reason, now)

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.enrollments.TransitionFromActive(txCtx, source); err != nil {
			return err
		}
		return s.enrollments.Create(txCtx, successor)
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			err = dErrors.New(dErrors.CodeInvalidState, "enrollment is no longer active")
		case errors.Is(err, sentinel.ErrConflict):
			err = dErrors.New(dErrors.CodeConflict, "student already has an active enrollment in the target class")
		default:
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer enrollment")
		}
		s.emit(ctx, audit.EventEnrollmentTransferred, enrollmentID.String(), source.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventEnrollmentTransferred, enrollmentID.String(), source.TenantID, true, reason, before, snapshot(successor))
	if s.metrics != nil {
		s.metrics.IncrementTransfers()
		s.metrics.ObserveTransfer(start)
	}
	return &TransferResult{Source: source, Successor: successor}, nil
}

// Complete closes an active enrollment with a final grade.
func (s *Service) Complete(ctx context.Context, enrollmentID id.EnrollmentID, finalGrade string) (*models.Enrollment, error) {
	return s.transition(ctx, enrollmentID, audit.EventEnrollmentCompleted,
		func(e *models.Enrollment) error { return e.CanComplete() },
		func(e *models.Enrollment, now time.Time) { e.ApplyCompletion(finalGrade, now) },
	)
}

// Withdraw closes an active enrollment with a reason.
func (s *Service) Withdraw(ctx context.Context, enrollmentID id.EnrollmentID, reason string) (*models.Enrollment, error) {
	return s.transition(ctx, enrollmentID, audit.EventEnrollmentWithdrawn,
		func(e *models.Enrollment) error { return e.CanWithdraw() },
		func(e *models.Enrollment, now time.Time) { e.ApplyWithdrawal(reason, now) },
	)
}

// Suspend closes an active enrollment with a reason.
func (s *Service) Suspend(ctx context.Context, enrollmentID id.EnrollmentID, reason string) (*models.Enrollment, error) {
	return s.transition(ctx, enrollmentID, audit.EventEnrollmentSuspended,
		func(e *models.Enrollment) error { return e.CanSuspend() },
		func(e *models.Enrollment, now time.Time) { e.ApplySuspension(reason, now) },
	)
}

func (s *Service) transition(ctx context.Context, enrollmentID id.EnrollmentID, action audit.Action,
	can func(*models.Enrollment) error, apply func(*models.Enrollment, time.Time)) (*models.Enrollment, error) {

	enrollment, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	before := snapshot(enrollment)
	if err := can(enrollment); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, action, enrollmentID.String(), enrollment.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}
	apply(enrollment, requestcontext.Now(ctx))

	if err := s.enrollments.TransitionFromActive(ctx, enrollment); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			err = dErrors.New(dErrors.CodeInvalidState, "enrollment is no longer active")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to update enrollment")
		}
		s.emit(ctx, action, enrollmentID.String(), enrollment.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}

	s.emit(ctx, action, enrollmentID.String(), enrollment.TenantID, true, enrollment.StatusReason, before, snapshot(enrollment))
	return enrollment, nil
}

// Get loads an enrollment, enforcing tenant scope. Cross-tenant ids read as
// not found so they cannot be probed.
func (s *Service) Get(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error) {
	if enrollmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "enrollment id is required")
	}
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "enrollment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment")
	}
	if err := requestcontext.AuthorizeTenant(ctx, enrollment.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "enrollment not found")
	}
	return enrollment, nil
}

// FindActiveByStudent returns the student's active enrollments.
func (s *Service) FindActiveByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.FindActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollments")
	}
	return enrollments, nil
}

// FindActiveByClass returns the active roster of a class.
func (s *Service) FindActiveByClass(ctx context.Context, classID id.ClassID) ([]*models.Enrollment, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.FindActiveByClass(ctx, classID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list enrollments")
	}
	return enrollments, nil
}

// History returns every enrollment row for a student, newest term first.
func (s *Service) History(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.History(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment history")
	}
	return enrollments, nil
}

func (s *Service) loadStudent(ctx context.Context, studentID id.StudentID) (*studentmodels.Student, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "student id is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	if err := requestcontext.AuthorizeTenant(ctx, student.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	return student, nil
}

func (s *Service) loadClass(ctx context.Context, classID id.ClassID) (*classmodels.Class, error) {
	if classID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "class id is required")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "class not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class")
	}
	if err := requestcontext.AuthorizeTenant(ctx, class.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "class not found")
	}
	return class, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID string, tenantID id.TenantID, success bool, reason string, before, after json.RawMessage) {
	if s.auditPublisher == nil {
		return
	}
	actor := requestcontext.Actor(ctx)
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		ActorID:   actor.ActorID,
		TenantID:  tenantID,
		Action:    string(action),
		Entity:    audit.EntityEnrollment,
		EntityID:  entityID,
		Success:   success,
		Reason:    reason,
		Before:    before,
		After:     after,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func snapshot(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
