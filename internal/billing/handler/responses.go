package handler

import (
	"time"

	"registra/internal/billing/models"
	"registra/internal/billing/service"
)

// InvoiceResponse is the HTTP representation of an invoice. Balance is
// computed at serialization time, never read from storage.
type InvoiceResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	StudentID       string     `json:"student_id"`
	Number          string     `json:"number"`
	PrincipalCents  int64      `json:"principal_cents"`
	Currency        string     `json:"currency"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	BalanceCents    int64      `json:"balance_cents"`
	Status          string     `json:"status"`
	DueDate         string     `json:"due_date"`
	Term            string     `json:"term,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	InvoiceID   string    `json:"invoice_id"`
	StudentID   string    `json:"student_id"`
	Number      string    `json:"number"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Reference   string    `json:"reference,omitempty"`
	Status      string    `json:"status"`
	RecordedBy  string    `json:"recorded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentResultResponse pairs an applied payment with the invoice's new state.
type PaymentResultResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Invoice *InvoiceResponse `json:"invoice"`
}

// FromInvoice converts a domain invoice to an HTTP response.
func FromInvoice(invoice *models.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:              invoice.ID.String(),
		TenantID:        invoice.TenantID.String(),
		StudentID:       invoice.StudentID.String(),
		Number:          invoice.Number,
		PrincipalCents:  invoice.PrincipalCents,
		Currency:        invoice.Currency,
		AmountPaidCents: invoice.AmountPaidCents,
		BalanceCents:    invoice.Balance(),
		Status:          string(invoice.Status),
		DueDate:         invoice.DueDate.Format("2006-01-02"),
		Term:            invoice.Term.String(),
		PaidAt:          invoice.PaidAt,
		CreatedAt:       invoice.CreatedAt,
		UpdatedAt:       invoice.UpdatedAt,
	}
}

// FromInvoices converts an invoice list to HTTP responses.
func FromInvoices(invoices []*models.Invoice) []*InvoiceResponse {
	out := make([]*InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		out = append(out, FromInvoice(invoice))
	}
	return out
}

// FromPayment converts a domain payment to an HTTP response.
func FromPayment(payment *models.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:          payment.ID.String(),
		TenantID:    payment.TenantID.String(),
		InvoiceID:   payment.InvoiceID.String(),
		StudentID:   payment.StudentID.String(),
		Number:      payment.Number,
		AmountCents: payment.AmountCents,
		Method:      string(payment.Method),
		Reference:   payment.Reference,
		Status:      string(payment.Status),
		RecordedBy:  payment.RecordedBy,
		CreatedAt:   payment.CreatedAt,
	}
}

// FromPayments converts a payment list to HTTP responses.
func FromPayments(payments []*models.Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		out = append(out, FromPayment(payment))
	}
	return out
}

// FromPaymentResult converts a payment result to an HTTP response.
func FromPaymentResult(result *service.PaymentResult) *PaymentResultResponse {
	return &PaymentResultResponse{
		Payment: FromPayment(result.Payment),
		Invoice: FromInvoice(result.Invoice),
	}
}
