// Package store persists student records. Implementations are pure I/O;
// tenant-scope checks and state machine rules live in the service.
package store

import (
	"context"

	"registra/internal/student/models"
	id "registra/pkg/domain"
)

// Store is the student repository contract.
type Store interface {
	// Create inserts a student; returns sentinel.ErrConflict (wrapped) when
	// the (tenant, admission number) pair is already taken.
	Create(ctx context.Context, student *models.Student) error
	FindByID(ctx context.Context, studentID id.StudentID) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*models.Student, error)
}
