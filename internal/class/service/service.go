// Package service owns class lifecycle management: creation, deactivation,
// and roster-facing reads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"registra/internal/class/models"
	"registra/internal/class/store"
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

// Service orchestrates class management.
type Service struct {
	classes        store.Store
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
func New(classes store.Store, opts ...Option) *Service {
	s := &Service{classes: classes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the data needed to create a class.
type CreateInput struct {
	TenantID  id.TenantID
	Name      string
	Term      id.Term
	Capacity  int
	TeacherID string
}

// Create opens a class for the given term.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Class, error) {
	if err := requestcontext.AuthorizeTenant(ctx, in.TenantID); err != nil {
		return nil, err
	}

	class, err := models.NewClass(id.NewClassID(), in.TenantID, in.Name, in.Term, in.Capacity, in.TeacherID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}

	if err := s.classes.Create(ctx, class); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "a class with this name already exists for the term")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create class")
		}
		s.emit(ctx, audit.EventClassCreated, class.ID.String(), in.TenantID, false, dErrors.MessageOf(err), nil)
		return nil, err
	}

	s.emit(ctx, audit.EventClassCreated, class.ID.String(), in.TenantID, true, "", snapshot(class))
	return class, nil
}

// Deactivate closes a class. History is untouched.
func (s *Service) Deactivate(ctx context.Context, classID id.ClassID) (*models.Class, error) {
	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}

	if err := class.CanDeactivate(); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, audit.EventClassDeactivated, classID.String(), class.TenantID, false, dErrors.MessageOf(err), nil)
		return nil, err
	}
	class.ApplyDeactivation(requestcontext.Now(ctx))

	if err := s.classes.Update(ctx, class); err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate class")
		s.emit(ctx, audit.EventClassDeactivated, classID.String(), class.TenantID, false, dErrors.MessageOf(err), nil)
		return nil, err
	}

	s.emit(ctx, audit.EventClassDeactivated, classID.String(), class.TenantID, true, "", snapshot(class))
	return class, nil
}

// Get loads a class, enforcing tenant scope. Cross-tenant ids read as not
// found so they cannot be probed.
func (s *Service) Get(ctx context.Context, classID id.ClassID) (*models.Class, error) {
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

// ListByTerm returns the tenant's classes for one term ordered by name.
func (s *Service) ListByTerm(ctx context.Context, tenantID id.TenantID, term id.Term) ([]*models.Class, error) {
	if err := requestcontext.AuthorizeTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	if term.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "term is required")
	}
	classes, err := s.classes.ListByTerm(ctx, tenantID, term)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list classes")
	}
	return classes, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID string, tenantID id.TenantID, success bool, reason string, after json.RawMessage) {
	if s.auditPublisher == nil {
		return
	}
	actor := requestcontext.Actor(ctx)
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		ActorID:   actor.ActorID,
		TenantID:  tenantID,
		Action:    string(action),
		Entity:    audit.EntityClass,
		EntityID:  entityID,
		Success:   success,
		Reason:    reason,
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
