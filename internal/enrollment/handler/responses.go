package handler

import (
	"time"

	"registra/internal/enrollment/models"
	"registra/internal/enrollment/service"
)

// EnrollmentResponse is the HTTP representation of an enrollment row.
type EnrollmentResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	StudentID       string     `json:"student_id"`
	ClassID         string     `json:"class_id"`
	Term            string     `json:"term"`
	Status          string     `json:"status"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
	StatusChangedAt *time.Time `json:"status_changed_at,omitempty"`
	StatusReason    string     `json:"status_reason,omitempty"`
	FinalGrade      string     `json:"final_grade,omitempty"`
	SuccessorID     string     `json:"successor_id,omitempty"`
}

// TransferResponse is the HTTP response for a completed transfer, carrying
// both the closed source row and the new active row.
type TransferResponse struct {
	Source    *EnrollmentResponse `json:"source"`
	Successor *EnrollmentResponse `json:"successor"`
}

// FromEnrollment converts a domain enrollment to an HTTP response.
func FromEnrollment(enrollment *models.Enrollment) *EnrollmentResponse {
	resp := &EnrollmentResponse{
		ID:              enrollment.ID.String(),
		TenantID:        enrollment.TenantID.String(),
		StudentID:       enrollment.StudentID.String(),
		ClassID:         enrollment.ClassID.String(),
		Term:            enrollment.Term.String(),
		Status:          string(enrollment.Status),
		EnrolledAt:      enrollment.EnrolledAt,
		StatusChangedAt: enrollment.StatusChangedAt,
		StatusReason:    enrollment.StatusReason,
		FinalGrade:      enrollment.FinalGrade,
	}
	if enrollment.SuccessorID != nil {
		resp.SuccessorID = enrollment.SuccessorID.String()
	}
	return resp
}

// FromEnrollments converts an enrollment list to HTTP responses.
func FromEnrollments(enrollments []*models.Enrollment) []*EnrollmentResponse {
	out := make([]*EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		out = append(out, FromEnrollment(enrollment))
	}
	return out
}

// FromTransferResult converts a transfer result to an HTTP response.
func FromTransferResult(result *service.TransferResult) *TransferResponse {
	return &TransferResponse{
		Source:    FromEnrollment(result.Source),
		Successor: FromEnrollment(result.Successor),
	}
}
