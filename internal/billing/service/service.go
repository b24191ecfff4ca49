// Package service is the financial ledger. It owns invoice numbering, the
// payment application path, and the repair operation that recomputes derived
// invoice fields from the payment record.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	billingmetrics "registra/internal/billing/metrics"
	"registra/internal/billing/models"
	"registra/internal/billing/store"
	studentmodels "registra/internal/student/models"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	audit "registra/pkg/platform/audit"
	"registra/pkg/platform/sentinel"
	"registra/pkg/platform/tx"
	"registra/pkg/requestcontext"
)

// StudentReader resolves invoice subjects.
type StudentReader interface {
	FindByID(ctx context.Context, studentID id.StudentID) (*studentmodels.Student, error)
}

// AuditPublisher emits structured audit events for every mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the financial ledger.
type Service struct {
	invoices       store.InvoiceStore
	payments       store.PaymentStore
	sequences      store.SequenceStore
	students       StudentReader
	runner         tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *billingmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *billingmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// New constructs the financial ledger service.
func New(invoices store.InvoiceStore, payments store.PaymentStore, sequences store.SequenceStore, students StudentReader, opts ...Option) *Service {
	s := &Service{invoices: invoices, payments: payments, sequences: sequences, students: students}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = tx.NewMemoryRunner(invoices, payments)
	}
	return s
}

// formatNumber renders a document number like INV-2026-00042. The sequence
// value comes from an atomic counter, never from reading the current maximum.
func formatNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}

// CreateInvoiceInput is the data needed to open an invoice.
type CreateInvoiceInput struct {
	StudentID      id.StudentID
	PrincipalCents int64
	Currency       string
	DueDate        time.Time
	Term           id.Term
}

// CreateInvoice opens an invoice against a student with a freshly allocated
// tenant-scoped number for the due date's year.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	student, err := s.loadStudent(ctx, in.StudentID)
	if err != nil {
		return nil, err
	}

	if in.DueDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "due date is required")
	}
	now := requestcontext.Now(ctx)
	year := in.DueDate.Year()

	seq, err := s.sequences.Next(ctx, student.TenantID, store.SequenceInvoice, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate invoice number")
	}
	number := formatNumber("INV", year, seq)

	invoice, err := models.NewInvoice(id.NewInvoiceID(), student.TenantID, in.StudentID, number,
		in.PrincipalCents, in.Currency, in.DueDate, in.Term, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			err = dErrors.New(dErrors.CodeConflict, "invoice number is already taken")
		} else {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invoice")
		}
		s.emit(ctx, audit.EventInvoiceCreated, invoice.ID.String(), student.TenantID, false, dErrors.MessageOf(err), nil, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventInvoiceCreated, invoice.ID.String(), student.TenantID, true, "", nil, snapshot(invoice))
	if s.metrics != nil {
		s.metrics.IncrementInvoicesCreated()
	}
	return invoice, nil
}

// ApplyPaymentInput is the data needed to apply money against an invoice.
// Reference is the caller's submission key; a retry with the same reference
// returns the original outcome instead of applying twice.
type ApplyPaymentInput struct {
	InvoiceID   id.InvoiceID
	AmountCents int64
	Method      models.Method
	Reference   string
}

// PaymentResult carries the applied payment and the invoice's new state.
type PaymentResult struct {
	Payment *models.Payment
	Invoice *models.Invoice
}

// ApplyPayment records a payment and folds it into the invoice's derived
// fields as one transaction. The payment row is written first: it is the
// durable record of money movement, and if the invoice update is lost the
// repair path recomputes the invoice from the payment sum on next access.
// Negative amounts are refunds and may move a paid invoice back to
// partially_paid.
func (s *Service) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*PaymentResult, error) {
	if in.AmountCents == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "payment amount cannot be zero")
	}
	if !in.Method.Known() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown payment method %q", in.Method)
	}

	invoice, err := s.Get(ctx, in.InvoiceID)
	if err != nil {
		return nil, err
	}

	if err := invoice.CanApplyPayment(in.AmountCents); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, audit.EventPaymentApplied, invoice.ID.String(), invoice.TenantID, false, dErrors.MessageOf(err), snapshot(invoice), nil)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	year := now.Year()

	seq, err := s.sequences.Next(ctx, invoice.TenantID, store.SequencePayment, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate payment number")
	}

	payment, err := models.NewPayment(id.NewPaymentID(), invoice.TenantID, invoice.ID, invoice.StudentID,
		formatNumber("PAY", year, seq), in.AmountCents, in.Method, in.Reference, actor.ActorID, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	before := snapshot(invoice)
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.payments.Create(txCtx, payment); err != nil {
			return err
		}
		invoice.ApplyPayment(in.AmountCents, now)
		return s.invoices.Update(txCtx, invoice)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) && in.Reference != "" {
			// Idempotent retry: the reference already landed. Return the
			// original payment with the invoice's current state.
			return s.replayPayment(ctx, in.InvoiceID, in.Reference)
		}
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply payment")
		s.emit(ctx, audit.EventPaymentApplied, invoice.ID.String(), invoice.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventPaymentApplied, invoice.ID.String(), invoice.TenantID, true, "", before, snapshot(invoice))
	if s.metrics != nil {
		s.metrics.ObservePayment(in.AmountCents)
	}
	return &PaymentResult{Payment: payment, Invoice: invoice}, nil
}

func (s *Service) replayPayment(ctx context.Context, invoiceID id.InvoiceID, reference string) (*PaymentResult, error) {
	payment, err := s.payments.FindByReference(ctx, invoiceID, reference)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment for retry")
	}
	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Payment: payment, Invoice: invoice}, nil
}

// VoidPayment takes a payment out of the invoice's paid sum and repairs the
// invoice from the remaining live payments.
func (s *Service) VoidPayment(ctx context.Context, paymentID id.PaymentID) (*PaymentResult, error) {
	if paymentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "payment id is required")
	}
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	if err := requestcontext.AuthorizeTenant(ctx, payment.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
	}
	if err := payment.CanVoid(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
	}

	// Voiding a charge while refund rows remain would recompute the paid sum
	// below zero. The refunds have to be voided first.
	live, err := s.payments.ListByInvoice(ctx, payment.InvoiceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payments")
	}
	if models.LiveSum(live)-payment.AmountCents < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidState, "voiding this payment would leave refunds exceeding the amount paid")
	}

	var invoice *models.Invoice
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		payment.ApplyVoid()
		if err := s.payments.Update(txCtx, payment); err != nil {
			return err
		}
		invoice, err = s.repairInTx(txCtx, payment.InvoiceID)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to void payment")
	}
	return &PaymentResult{Payment: payment, Invoice: invoice}, nil
}

// Cancel closes an invoice that has no money applied.
func (s *Service) Cancel(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	before := snapshot(invoice)
	if err := invoice.CanCancel(); err != nil {
		err = dErrors.New(dErrors.CodeInvalidState, dErrors.MessageOf(err))
		s.emit(ctx, audit.EventInvoiceCancelled, invoice.ID.String(), invoice.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}
	invoice.ApplyCancellation(requestcontext.Now(ctx))

	if err := s.invoices.Update(ctx, invoice); err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel invoice")
		s.emit(ctx, audit.EventInvoiceCancelled, invoice.ID.String(), invoice.TenantID, false, dErrors.MessageOf(err), before, nil)
		return nil, err
	}

	s.emit(ctx, audit.EventInvoiceCancelled, invoice.ID.String(), invoice.TenantID, true, "", before, snapshot(invoice))
	return invoice, nil
}

// Get loads an invoice, enforcing tenant scope, lazily reclassifying overdue,
// and repairing the derived fields when they disagree with the payment sum.
// A partial failure between the payment write and the invoice update is
// healed here, on next access, without surfacing an error.
func (s *Service) Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	if invoiceID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invoice")
	}
	if err := requestcontext.AuthorizeTenant(ctx, invoice.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "invoice not found")
	}

	now := requestcontext.Now(ctx)

	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payments")
	}
	if sum := models.LiveSum(payments); !invoice.Consistent(sum) {
		before := snapshot(invoice)
		invoice.Recompute(sum, now)
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to repair invoice")
		}
		s.emit(ctx, audit.EventInvoiceRepaired, invoice.ID.String(), invoice.TenantID, true, "derived fields recomputed from payment sum", before, snapshot(invoice))
		if s.metrics != nil {
			s.metrics.IncrementRepairs()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "invoice repaired on read",
				"invoice_id", invoice.ID,
				"payment_sum_cents", sum,
			)
		}
		return invoice, nil
	}

	if invoice.RefreshOverdue(now) {
		invoice.UpdatedAt = now
		if err := s.invoices.Update(ctx, invoice); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update invoice")
		}
	}
	return invoice, nil
}

// Repair recomputes an invoice's derived fields from its live payment sum.
// It is idempotent: repairing a consistent invoice changes nothing.
func (s *Service) Repair(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	// Get already runs the repair path.
	return s.Get(ctx, invoiceID)
}

func (s *Service) repairInTx(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice.Recompute(models.LiveSum(payments), requestcontext.Now(ctx))
	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListByStudent returns a student's invoices, newest first, with lazy overdue
// reclassification applied in memory.
func (s *Service) ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Invoice, error) {
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list invoices")
	}
	now := requestcontext.Now(ctx)
	for _, invoice := range invoices {
		invoice.RefreshOverdue(now)
	}
	return invoices, nil
}

// ListPayments returns an invoice's payments, oldest first, voided included.
func (s *Service) ListPayments(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	if _, err := s.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return payments, nil
}

func (s *Service) loadStudent(ctx context.Context, studentID id.StudentID) (*studentmodels.Student, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "student id is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	if err := requestcontext.AuthorizeTenant(ctx, student.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	return student, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID string, tenantID id.TenantID, success bool, reason string, before, after json.RawMessage) {
	if s.auditPublisher == nil {
		return
	}
	actor := requestcontext.Actor(ctx)
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		ActorID:   actor.ActorID,
		TenantID:  tenantID,
		Action:    string(action),
		Entity:    audit.EntityInvoice,
		EntityID:  entityID,
		Success:   success,
		Reason:    reason,
		Before:    before,
		After:     after,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", action, "error", err)
	}
}

func snapshot(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
