// Package store persists class records. Implementations are pure I/O; the
// (tenant, term, name) uniqueness invariant is enforced here because it spans
// rows, everything else lives in the service.
package store

import (
	"context"

	"registra/internal/class/models"
	id "registra/pkg/domain"
)

// Store is the class repository contract.
type Store interface {
	// Create inserts a class; returns sentinel.ErrConflict (wrapped) when the
	// (tenant, term, name) triple is already taken.
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, classID id.ClassID) (*models.Class, error)
	Update(ctx context.Context, class *models.Class) error
	ListByTerm(ctx context.Context, tenantID id.TenantID, term id.Term) ([]*models.Class, error)
}
