package handler

import (
	"time"

	"registra/internal/class/models"
)

// ClassResponse is the HTTP representation of a class.
type ClassResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Term      string    `json:"term"`
	Capacity  int       `json:"capacity"`
	TeacherID string    `json:"teacher_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromClass converts a domain class to an HTTP response.
func FromClass(class *models.Class) *ClassResponse {
	return &ClassResponse{
		ID:        class.ID.String(),
		TenantID:  class.TenantID.String(),
		Name:      class.Name,
		Term:      class.Term.String(),
		Capacity:  class.Capacity,
		TeacherID: class.TeacherID,
		Active:    class.Active,
		CreatedAt: class.CreatedAt,
		UpdatedAt: class.UpdatedAt,
	}
}

// FromClasses converts a class list to HTTP responses.
func FromClasses(classes []*models.Class) []*ClassResponse {
	out := make([]*ClassResponse, 0, len(classes))
	for _, class := range classes {
		out = append(out, FromClass(class))
	}
	return out
}
