package handler

import (
	"time"

	"registra/internal/student/models"
)

// StudentResponse is the HTTP representation of a student record.
type StudentResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DisplayName string    `json:"display_name"`
	AdmissionNo string    `json:"admission_no"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FromStudent converts a domain student to an HTTP response.
func FromStudent(student *models.Student) *StudentResponse {
	return &StudentResponse{
		ID:          student.ID.String(),
		TenantID:    student.TenantID.String(),
		FirstName:   student.FirstName,
		LastName:    student.LastName,
		DisplayName: student.DisplayName(),
		AdmissionNo: student.AdmissionNo,
		Status:      string(student.Status),
		CreatedAt:   student.CreatedAt,
		UpdatedAt:   student.UpdatedAt,
	}
}

// FromStudents converts a student list to HTTP responses.
func FromStudents(students []*models.Student) []*StudentResponse {
	out := make([]*StudentResponse, 0, len(students))
	for _, student := range students {
		out = append(out, FromStudent(student))
	}
	return out
}
