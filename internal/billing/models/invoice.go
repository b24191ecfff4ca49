// Package models holds the financial ledger's invoice and payment types.
// All money is integer cents; balance is always derived, never stored.
package models

import (
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// InvoiceStatus is the invoice lifecycle state.
//
// unpaid -> partially_paid -> paid, with overdue as a lazy reclassification
// of unpaid/partially_paid past the due date, and cancelled reachable only
// while nothing has been paid. Refunds (negative payments) may move paid back
// to partially_paid.
type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

// Invoice is one receivable against a student.
//
// Invariants:
//   - PrincipalCents > 0 and immutable after creation.
//   - AmountPaidCents is denormalized from the payment sum; Balance is always
//     computed. When the two drift apart after a partial failure, Repair
//     recomputes from the payments.
//   - Number is unique per tenant and generated from an atomic per-(tenant,
//     kind, year) sequence.
type Invoice struct {
	ID              id.InvoiceID  `json:"id"`
	TenantID        id.TenantID   `json:"tenant_id"`
	StudentID       id.StudentID  `json:"student_id"`
	Number          string        `json:"number"`
	PrincipalCents  int64         `json:"principal_cents"`
	Currency        string        `json:"currency"`
	AmountPaidCents int64         `json:"amount_paid_cents"`
	Status          InvoiceStatus `json:"status"`
	DueDate         time.Time     `json:"due_date"`
	Term            id.Term       `json:"term"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Balance is the outstanding amount, computed on every read.
func (i *Invoice) Balance() int64 {
	return i.PrincipalCents - i.AmountPaidCents
}

// CanApplyPayment checks whether the invoice accepts the given payment.
// Cancelled invoices reject all money movement. Paid invoices reject further
// charges but accept refunds (negative amounts). Overdue invoices accept.
// A refund may never exceed the applied sum: amountPaid stays >= 0.
func (i *Invoice) CanApplyPayment(amountCents int64) error {
	if i.Status == InvoiceCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "cannot apply a payment to a cancelled invoice")
	}
	if i.Status == InvoicePaid && amountCents > 0 {
		return dErrors.New(dErrors.CodeInvalidState, "cannot apply a payment to a paid invoice")
	}
	if amountCents < 0 && i.AmountPaidCents+amountCents < 0 {
		return dErrors.New(dErrors.CodeInvalidState, "refund exceeds the amount paid on this invoice")
	}
	return nil
}

// ApplyPayment folds one payment amount into the derived fields and
// recomputes the status. Negative amounts are refunds and may move a paid
// invoice back to partially_paid.
func (i *Invoice) ApplyPayment(amountCents int64, now time.Time) {
	i.AmountPaidCents += amountCents
	i.recomputeStatus(now)
	i.UpdatedAt = now
}

// Recompute overwrites the derived fields from an externally computed payment
// sum. It is the repair path and is idempotent.
func (i *Invoice) Recompute(paymentSumCents int64, now time.Time) {
	i.AmountPaidCents = paymentSumCents
	i.recomputeStatus(now)
	i.UpdatedAt = now
}

func (i *Invoice) recomputeStatus(now time.Time) {
	if i.Status == InvoiceCancelled {
		return
	}
	switch {
	case i.Balance() <= 0:
		i.Status = InvoicePaid
		if i.PaidAt == nil {
			paidAt := now
			i.PaidAt = &paidAt
		}
	case i.AmountPaidCents > 0:
		i.Status = InvoicePartiallyPaid
		i.PaidAt = nil
	default:
		i.Status = InvoiceUnpaid
		i.PaidAt = nil
	}
	i.refreshOverdue(now)
}

// RefreshOverdue lazily reclassifies an unpaid or partially paid invoice past
// its due date. There is no background sweep; every read and write path calls
// this. Returns true when the status changed.
func (i *Invoice) RefreshOverdue(now time.Time) bool {
	before := i.Status
	i.refreshOverdue(now)
	return i.Status != before
}

func (i *Invoice) refreshOverdue(now time.Time) {
	switch i.Status {
	case InvoiceUnpaid, InvoicePartiallyPaid:
		if i.DueDate.Before(now) {
			i.Status = InvoiceOverdue
		}
	}
}

// Consistent reports whether the stored derived fields agree with the given
// payment sum.
func (i *Invoice) Consistent(paymentSumCents int64) bool {
	return i.AmountPaidCents == paymentSumCents
}

// CanCancel checks whether the invoice can be cancelled. Any applied money
// blocks cancellation; the money has to be refunded first.
func (i *Invoice) CanCancel() error {
	if i.Status == InvoiceCancelled {
		return dErrors.New(dErrors.CodeInvalidState, "invoice is already cancelled")
	}
	if i.AmountPaidCents > 0 {
		return dErrors.New(dErrors.CodeInvalidState, "cannot cancel an invoice with payments applied")
	}
	return nil
}

// ApplyCancellation marks the invoice cancelled.
// Call CanCancel first to validate the transition.
func (i *Invoice) ApplyCancellation(now time.Time) {
	i.Status = InvoiceCancelled
	i.UpdatedAt = now
}

func NewInvoice(invoiceID id.InvoiceID, tenantID id.TenantID, studentID id.StudentID, number string, principalCents int64, currency string, dueDate time.Time, term id.Term, now time.Time) (*Invoice, error) {
	if tenantID.IsNil() || studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invoice requires tenant and student")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invoice requires a number")
	}
	if principalCents <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invoice principal must be positive")
	}
	if currency == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invoice requires a currency")
	}
	if dueDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invoice requires a due date")
	}
	invoice := &Invoice{
		ID:             invoiceID,
		TenantID:       tenantID,
		StudentID:      studentID,
		Number:         number,
		PrincipalCents: principalCents,
		Currency:       currency,
		Status:         InvoiceUnpaid,
		DueDate:        dueDate,
		Term:           term,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	invoice.refreshOverdue(now)
	return invoice, nil
}
