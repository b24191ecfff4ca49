package models

import (
	"strings"
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// Class is a named group of students scoped to one tenant and one academic
// term.
//
// Invariants:
//   - Name is non-empty and at most 64 characters
//   - (tenant, term, name) is unique, enforced by the store
//   - Capacity is positive
type Class struct {
	ID        id.ClassID  `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	Name      string      `json:"name"`
	Term      id.Term     `json:"term"`
	Capacity  int         `json:"capacity"`
	TeacherID string      `json:"teacher_id"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CanDeactivate checks if the class can be deactivated.
func (c *Class) CanDeactivate() error {
	if !c.Active {
		return dErrors.New(dErrors.CodeInvariantViolation, "class is already inactive")
	}
	return nil
}

// ApplyDeactivation marks the class inactive. Existing enrollments and
// attendance history are untouched.
func (c *Class) ApplyDeactivation(now time.Time) {
	c.Active = false
	c.UpdatedAt = now
}

func NewClass(classID id.ClassID, tenantID id.TenantID, name string, term id.Term, capacity int, teacherID string, now time.Time) (*Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class name cannot be empty")
	}
	if len(name) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class name must be 64 characters or less")
	}
	if term.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class requires a term")
	}
	if capacity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class capacity must be positive")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "class requires a tenant")
	}
	return &Class{
		ID:        classID,
		TenantID:  tenantID,
		Name:      name,
		Term:      term,
		Capacity:  capacity,
		TeacherID: teacherID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
