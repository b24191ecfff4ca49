// Package service owns the student lifecycle: registration and the withdrawn
// status transition. Students are never deleted.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"registra/internal/student/models"
	"registra/internal/student/store"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	audit "registra/pkg/platform/audit"
	"registra/pkg/platform/sentinel"
	"registra/pkg/requestcontext"
)

// AuditPublisher emits structured audit events for every mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates student record management.
type Service struct {
	students       store.Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

// New constructs a Service.
func New(students store.Store, opts ...Option) *Service {
	s := &Service{students: students}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is the data needed to register a student.
type RegisterInput struct {
	TenantID    id.TenantID
	FirstName   string
	LastName    string
	AdmissionNo string
}

// Register creates a student record in enrolled status.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Student, error) {
	if err := requestcontext.AuthorizeTenant(ctx, in.TenantID); err != nil {
		return nil, err
	}

	student, err := models.NewStudent(id.NewStudentID(), in.TenantID, in.FirstName, in.LastName, in.AdmissionNo, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.students.Create(ctx, student); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "admission number is already taken")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to register student")
		}
		s.emit(ctx, audit.EventStudentRegistered, student.ID.String(), in.TenantID, false, dErrors.MessageOf(err), nil, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventStudentRegistered, student.ID.String(), in.TenantID, true, "", nil, snapshot(student))
	return student, nil
}

// Withdraw transitions a student to withdrawn status. The record remains
// queryable; only the status flag changes.
func (s *Service) Withdraw(ctx context.Context, studentID id.StudentID) (*models.Student, error) {
	student, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	before := snapshot(student)
	if err := student.CanWithdraw(); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, audit.EventStudentWithdrawn, studentID.String(), student.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}
	student.ApplyWithdrawal(requestcontext.Now(ctx))

	if err := s.students.Update(ctx, student); err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw student")
		s.emit(ctx, audit.EventStudentWithdrawn, studentID.String(), student.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventStudentWithdrawn, studentID.String(), student.TenantID, true, "", before, snapshot(student))
	return student, nil
}

// Get loads a student, enforcing tenant scope. A student outside the caller's
// tenant is reported as not found, never as forbidden, so ids cannot be probed.
func (s *Service) Get(ctx context.Context, studentID id.StudentID) (*models.Student, error) {
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

// List returns all students in the tenant ordered by display name.
func (s *Service) List(ctx context.Context, tenantID id.TenantID) ([]*models.Student, error) {
	if err := requestcontext.AuthorizeTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	students, err := s.students.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list students")
	}
	return students, nil
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
		Entity:    audit.EntityStudent,
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
