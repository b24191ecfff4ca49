package models

import (
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// PaymentStatus distinguishes live payments from voided ones. Voided
// payments stay on record but are excluded from the repair sum.
type PaymentStatus string

const (
	PaymentRecorded PaymentStatus = "recorded"
	PaymentVoided   PaymentStatus = "voided"
)

// Method is how the money moved.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
	MethodCard     Method = "card"
	MethodMobile   Method = "mobile"
)

// Known reports whether the method is a supported value.
func (m Method) Known() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodMobile:
		return true
	default:
		return false
	}
}

// Payment is one durable record of money movement against an invoice.
// Negative amounts are refunds. Payments are never deleted; corrections void
// and re-record.
//
// Reference is the caller's submission key: the unique index on
// (invoice_id, reference) makes a timed-out retry safe to re-submit.
type Payment struct {
	ID          id.PaymentID  `json:"id"`
	TenantID    id.TenantID   `json:"tenant_id"`
	InvoiceID   id.InvoiceID  `json:"invoice_id"`
	StudentID   id.StudentID  `json:"student_id"`
	Number      string        `json:"number"`
	AmountCents int64         `json:"amount_cents"`
	Method      Method        `json:"method"`
	Reference   string        `json:"reference,omitempty"`
	Status      PaymentStatus `json:"status"`
	RecordedBy  string        `json:"recorded_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Live reports whether the payment counts toward the invoice's paid sum.
func (p *Payment) Live() bool {
	return p.Status == PaymentRecorded
}

// CanVoid checks whether the payment can be voided.
func (p *Payment) CanVoid() error {
	if p.Status == PaymentVoided {
		return dErrors.New(dErrors.CodeInvalidState, "payment is already voided")
	}
	return nil
}

// ApplyVoid marks the payment voided.
// Call CanVoid first to validate the transition.
func (p *Payment) ApplyVoid() {
	p.Status = PaymentVoided
}

func NewPayment(paymentID id.PaymentID, tenantID id.TenantID, invoiceID id.InvoiceID, studentID id.StudentID, number string, amountCents int64, method Method, reference, recordedBy string, now time.Time) (*Payment, error) {
	if tenantID.IsNil() || invoiceID.IsNil() || studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment requires tenant, invoice, and student")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment requires a number")
	}
	if amountCents == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "payment amount cannot be zero")
	}
	if !method.Known() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown payment method %q", method)
	}
	return &Payment{
		ID:          paymentID,
		TenantID:    tenantID,
		InvoiceID:   invoiceID,
		StudentID:   studentID,
		Number:      number,
		AmountCents: amountCents,
		Method:      method,
		Reference:   reference,
		Status:      PaymentRecorded,
		RecordedBy:  recordedBy,
		CreatedAt:   now,
	}, nil
}

// LiveSum totals the live payments in a set.
func LiveSum(payments []*Payment) int64 {
	var sum int64
	for _, payment := range payments {
		if payment.Live() {
			sum += payment.AmountCents
		}
	}
	return sum
}
