package handler

import (
	"strings"
	"time"

	"registra/internal/billing/models"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// CreateInvoiceRequest is the HTTP request body for POST /invoices.
type CreateInvoiceRequest struct {
	StudentID      string `json:"student_id"`
	PrincipalCents int64  `json:"principal_cents"`
	Currency       string `json:"currency"`
	DueDate        string `json:"due_date"`
	Term           string `json:"term,omitempty"`

	// Parsed values (populated by Validate)
	parsedStudentID id.StudentID
	parsedDueDate   time.Time
	parsedTerm      id.Term
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateInvoiceRequest) Validate() error {
	studentID, err := id.ParseStudentID(r.StudentID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "student_id is required")
	}
	r.parsedStudentID = studentID

	if r.PrincipalCents <= 0 {
		return dErrors.New(dErrors.CodeValidation, "principal_cents must be positive")
	}

	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if len(r.Currency) != 3 {
		return dErrors.New(dErrors.CodeValidation, "currency must be a 3-letter code")
	}

	dueDate, err := time.Parse("2006-01-02", r.DueDate)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "due_date must be YYYY-MM-DD")
	}
	r.parsedDueDate = dueDate

	r.Term = strings.TrimSpace(r.Term)
	if r.Term != "" {
		term, err := id.ParseTerm(r.Term)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "term is invalid")
		}
		r.parsedTerm = term
	}
	return nil
}

// ParsedStudentID returns the validated student id.
func (r *CreateInvoiceRequest) ParsedStudentID() id.StudentID {
	return r.parsedStudentID
}

// ParsedDueDate returns the validated due date.
func (r *CreateInvoiceRequest) ParsedDueDate() time.Time {
	return r.parsedDueDate
}

// ParsedTerm returns the validated term; zero when omitted.
func (r *CreateInvoiceRequest) ParsedTerm() id.Term {
	return r.parsedTerm
}

// ApplyPaymentRequest is the HTTP request body for
// POST /invoices/{invoiceID}/payments. Negative amounts are refunds.
type ApplyPaymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
	Reference   string `json:"reference,omitempty"`
}

// Validate validates the request.
func (r *ApplyPaymentRequest) Validate() error {
	if r.AmountCents == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount_cents cannot be zero")
	}
	if !models.Method(r.Method).Known() {
		return dErrors.Newf(dErrors.CodeValidation, "method %q is not a supported payment method", r.Method)
	}
	r.Reference = strings.TrimSpace(r.Reference)
	if len(r.Reference) > 64 {
		return dErrors.New(dErrors.CodeValidation, "reference must be at most 64 characters")
	}
	return nil
}
