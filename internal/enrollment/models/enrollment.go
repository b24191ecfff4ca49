package models

import (
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// Status is the enrollment lifecycle state.
//
// State machine: active -> completed | transferred | withdrawn | suspended.
// Only active is a source state; the other four are terminal for the row.
// A transfer additionally spawns a new active row on the target class, linked
// through SuccessorID.
type Status string

const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusTransferred Status = "transferred"
	StatusWithdrawn   Status = "withdrawn"
	StatusSuspended   Status = "suspended"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusActive
}

// Valid reports whether the status is a supported value.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusTransferred, StatusWithdrawn, StatusSuspended:
		return true
	default:
		return false
	}
}

// Enrollment links one student to one class for one term.
//
// Invariants:
//   - At most one enrollment may be active per (student, class, term);
//     enforced by a partial unique index scoped to active rows, so a student
//     may re-enroll after a withdrawn or completed row for the same class.
//   - Rows are never deleted; history is permanent.
//   - Status only ever leaves active, and records when and why it did.
type Enrollment struct {
	ID              id.EnrollmentID  `json:"id"`
	TenantID        id.TenantID      `json:"tenant_id"`
	StudentID       id.StudentID     `json:"student_id"`
	ClassID         id.ClassID       `json:"class_id"`
	Term            id.Term          `json:"term"`
	Status          Status           `json:"status"`
	EnrolledAt      time.Time        `json:"enrolled_at"`
	StatusChangedAt *time.Time       `json:"status_changed_at,omitempty"`
	StatusReason    string           `json:"status_reason,omitempty"`
	FinalGrade      string           `json:"final_grade,omitempty"`
	SuccessorID     *id.EnrollmentID `json:"successor_id,omitempty"`
}

func (e *Enrollment) IsActive() bool {
	return e.Status == StatusActive
}

// canLeaveActive guards every outbound transition.
func (e *Enrollment) canLeaveActive(verb string) error {
	if e.Status != StatusActive {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot %s an enrollment in status %q", verb, e.Status)
	}
	return nil
}

// CanComplete checks if the enrollment can transition to completed.
func (e *Enrollment) CanComplete() error {
	return e.canLeaveActive("complete")
}

// ApplyCompletion transitions the enrollment to completed with a final grade.
// Call CanComplete first to validate the transition.
func (e *Enrollment) ApplyCompletion(finalGrade string, now time.Time) {
	e.Status = StatusCompleted
	e.FinalGrade = finalGrade
	e.StatusChangedAt = &now
}

// CanWithdraw checks if the enrollment can transition to withdrawn.
func (e *Enrollment) CanWithdraw() error {
	return e.canLeaveActive("withdraw")
}

// ApplyWithdrawal transitions the enrollment to withdrawn.
// Call CanWithdraw first to validate the transition.
func (e *Enrollment) ApplyWithdrawal(reason string, now time.Time) {
	e.Status = StatusWithdrawn
	e.StatusReason = reason
	e.StatusChangedAt = &now
}

// CanSuspend checks if the enrollment can transition to suspended.
func (e *Enrollment) CanSuspend() error {
	return e.canLeaveActive("suspend")
}

// ApplySuspension transitions the enrollment to suspended.
// Call CanSuspend first to validate the transition.
func (e *Enrollment) ApplySuspension(reason string, now time.Time) {
	e.Status = StatusSuspended
	e.StatusReason = reason
	e.StatusChangedAt = &now
}

// CanTransfer checks if the enrollment can be the source of a transfer.
func (e *Enrollment) CanTransfer() error {
	return e.canLeaveActive("transfer")
}

// ApplyTransfer transitions the source enrollment to transferred and links
// the successor row created on the target class.
// Call CanTransfer first to validate the transition.
func (e *Enrollment) ApplyTransfer(successorID id.EnrollmentID, reason string, now time.Time) {
	e.Status = StatusTransferred
	e.StatusReason = reason
	e.StatusChangedAt = &now
	e.SuccessorID = &successorID
}

func NewEnrollment(enrollmentID id.EnrollmentID, tenantID id.TenantID, studentID id.StudentID, classID id.ClassID, term id.Term, now time.Time) (*Enrollment, error) {
	if tenantID.IsNil() || studentID.IsNil() || classID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires tenant, student, and class")
	}
	if term.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "enrollment requires a term")
	}
	return &Enrollment{
		ID:         enrollmentID,
		TenantID:   tenantID,
		StudentID:  studentID,
		ClassID:    classID,
		Term:       term,
		Status:     StatusActive,
		EnrolledAt: now,
	}, nil
}
