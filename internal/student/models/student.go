package models

import (
	"strings"
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// StudentStatus is the membership-status flag on a student record.
type StudentStatus string

const (
	StudentStatusEnrolled  StudentStatus = "enrolled"
	StudentStatusWithdrawn StudentStatus = "withdrawn"
)

// Student is a person being tracked. Records are never hard-deleted; a
// withdrawal is a status transition so history stays queryable.
//
// Invariants:
//   - First and last name are non-empty
//   - AdmissionNo is non-empty and unique per tenant
//   - Status transitions: enrolled -> withdrawn only
type Student struct {
	ID          id.StudentID  `json:"id"`
	TenantID    id.TenantID   `json:"tenant_id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	AdmissionNo string        `json:"admission_no"`
	Status      StudentStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DisplayName is the roster-facing name, "Last, First".
func (s *Student) DisplayName() string {
	return s.LastName + ", " + s.FirstName
}

func (s *Student) IsEnrolled() bool {
	return s.Status == StudentStatusEnrolled
}

// CanWithdraw checks if the student can transition to withdrawn status.
func (s *Student) CanWithdraw() error {
	if s.Status == StudentStatusWithdrawn {
		return dErrors.New(dErrors.CodeInvariantViolation, "student is already withdrawn")
	}
	return nil
}

// ApplyWithdrawal transitions the student to withdrawn status.
// Call CanWithdraw first to validate the transition.
func (s *Student) ApplyWithdrawal(now time.Time) {
	s.Status = StudentStatusWithdrawn
	s.UpdatedAt = now
}

func NewStudent(studentID id.StudentID, tenantID id.TenantID, firstName, lastName, admissionNo string, now time.Time) (*Student, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	admissionNo = strings.TrimSpace(admissionNo)

	if firstName == "" || lastName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student name cannot be empty")
	}
	if admissionNo == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "admission number cannot be empty")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student requires a tenant")
	}
	return &Student{
		ID:          studentID,
		TenantID:    tenantID,
		FirstName:   firstName,
		LastName:    lastName,
		AdmissionNo: admissionNo,
		Status:      StudentStatusEnrolled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
