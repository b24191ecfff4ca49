// Package store persists invoices, payments, and the sequence counters that
// number them.
package store

import (
	"context"

	"registra/internal/billing/models"
	id "registra/pkg/domain"
)

// InvoiceStore is the invoice persistence interface.
//
// Contract:
//   - Create returns sentinel.ErrConflict when the tenant-scoped number is
//     already taken.
//   - FindByID returns sentinel.ErrNotFound when absent.
//   - Update persists the derived fields (amount paid, status, paid at).
type InvoiceStore interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Invoice, error)
}

// PaymentStore is the payment persistence interface.
//
// Contract:
//   - Create returns sentinel.ErrConflict when (invoice, reference) already
//     exists; the caller treats that as an idempotent retry.
//   - ListByInvoice returns payments oldest first, voided included.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindByReference(ctx context.Context, invoiceID id.InvoiceID, reference string) (*models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
	ListByInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error)
}

// SequenceStore hands out gap-tolerant, strictly increasing numbers per
// (tenant, kind, year). Next must be atomic under concurrent callers: two
// invoices created at the same instant must never share a number.
type SequenceStore interface {
	Next(ctx context.Context, tenantID id.TenantID, kind string, year int) (int64, error)
}

// Sequence kinds.
const (
	SequenceInvoice = "invoice"
	SequencePayment = "payment"
)
