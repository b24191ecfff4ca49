// Package store persists enrollment rows. The at-most-one-active invariant
// and the active-row transition guard are enforced here, at the storage
// layer, because application-level checks cannot survive concurrent writers.
package store

import (
	"context"

	"registra/internal/enrollment/models"
	id "registra/pkg/domain"
)

// Store is the enrollment repository contract.
type Store interface {
	// Create inserts an enrollment; returns sentinel.ErrConflict (wrapped)
	// when an active row already exists for (student, class, term).
	Create(ctx context.Context, enrollment *models.Enrollment) error

	FindByID(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error)

	// TransitionFromActive writes the enrollment's new terminal state with a
	// conditional update guarded on the row still being active. Returns
	// sentinel.ErrInvalidState when a concurrent writer already moved the row
	// out of active, and sentinel.ErrNotFound when the row is absent.
	TransitionFromActive(ctx context.Context, enrollment *models.Enrollment) error

	FindActiveByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error)
	FindActiveByClass(ctx context.Context, classID id.ClassID) ([]*models.Enrollment, error)

	// History returns every enrollment row for the student, ordered by term
	// descending, then enrollment date descending.
	History(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error)
}
