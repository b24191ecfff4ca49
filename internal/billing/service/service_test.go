package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registra/internal/billing/models"
	billingStore "registra/internal/billing/store"
	studentmodels "registra/internal/student/models"
	studentStore "registra/internal/student/store"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/audit"
	auditPublisher "registra/pkg/platform/audit/publisher"
	auditMemory "registra/pkg/platform/audit/store/memory"
	"registra/pkg/requestcontext"
)

// =============================================================================
// Billing Service Test Suite
// =============================================================================
// Justification for unit tests: the financial ledger's derived-state rules
// (status transitions, refunds, repair-from-payment-sum, lazy overdue) are
// pure arithmetic over two stores and need exhaustive scenario coverage.

type BillingServiceSuite struct {
	suite.Suite
	invoices   *billingStore.InMemoryInvoiceStore
	payments   *billingStore.InMemoryPaymentStore
	sequences  *billingStore.InMemorySequenceStore
	students   *studentStore.InMemoryStore
	auditStore *auditMemory.InMemoryStore
	service    *Service

	tenantID    id.TenantID
	now         time.Time
	dueDate     time.Time
	student     *studentmodels.Student
	admissionNo int
}

func TestBillingServiceSuite(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.invoices = billingStore.NewInMemoryInvoiceStore()
	s.payments = billingStore.NewInMemoryPaymentStore()
	s.sequences = billingStore.NewInMemorySequenceStore()
	s.students = studentStore.NewInMemoryStore()
	s.auditStore = auditMemory.NewInMemoryStore()

	s.tenantID = id.NewTenantID()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.dueDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	s.admissionNo = 0

	var err error
	s.student, err = studentmodels.NewStudent(id.NewStudentID(), s.tenantID, "Amina", "Diallo", "ADM-2026-00001", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.students.Create(context.Background(), s.student))

	s.service = New(s.invoices, s.payments, s.sequences, s.students,
		WithAuditPublisher(auditPublisher.NewPublisher(s.auditStore)),
	)
}

func (s *BillingServiceSuite) ctx() context.Context {
	return s.ctxAt(s.now)
}

func (s *BillingServiceSuite) ctxAt(t time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
		ActorID:  "bursar-1",
		TenantID: s.tenantID,
		Role:     id.RoleBursar,
	})
	return requestcontext.WithTime(ctx, t)
}

func (s *BillingServiceSuite) invoice(principalCents int64) *models.Invoice {
	invoice, err := s.service.CreateInvoice(s.ctx(), CreateInvoiceInput{
		StudentID:      s.student.ID,
		PrincipalCents: principalCents,
		Currency:       "USD",
		DueDate:        s.dueDate,
		Term:           id.Term("2026-T1"),
	})
	s.Require().NoError(err)
	return invoice
}

func (s *BillingServiceSuite) pay(invoiceID id.InvoiceID, amountCents int64, reference string) *PaymentResult {
	result, err := s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
		InvoiceID:   invoiceID,
		AmountCents: amountCents,
		Method:      models.MethodTransfer,
		Reference:   reference,
	})
	s.Require().NoError(err)
	return result
}

// =============================================================================
// CreateInvoice Tests
// =============================================================================

func (s *BillingServiceSuite) TestCreateInvoice() {
	s.Run("numbers invoices from the per-year sequence", func() {
		first := s.invoice(100_000)
		second := s.invoice(50_000)

		s.Equal("INV-2026-00001", first.Number)
		s.Equal("INV-2026-00002", second.Number)
		s.Equal(models.InvoiceUnpaid, first.Status)
		s.Equal(int64(100_000), first.Balance())
	})

	s.Run("sequences are independent per year", func() {
		s.invoice(100_000)

		nextYear, err := s.service.CreateInvoice(s.ctx(), CreateInvoiceInput{
			StudentID:      s.student.ID,
			PrincipalCents: 100_000,
			Currency:       "USD",
			DueDate:        s.dueDate.AddDate(1, 0, 0),
		})
		s.Require().NoError(err)
		s.Equal("INV-2027-00001", nextYear.Number)
	})

	s.Run("non-positive principal is rejected", func() {
		_, err := s.service.CreateInvoice(s.ctx(), CreateInvoiceInput{
			StudentID:      s.student.ID,
			PrincipalCents: 0,
			Currency:       "USD",
			DueDate:        s.dueDate,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown student is not found", func() {
		_, err := s.service.CreateInvoice(s.ctx(), CreateInvoiceInput{
			StudentID:      id.NewStudentID(),
			PrincipalCents: 100_000,
			Currency:       "USD",
			DueDate:        s.dueDate,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// ApplyPayment Tests
// =============================================================================

func (s *BillingServiceSuite) TestApplyPayment() {
	s.Run("partial then final payment walks unpaid to paid", func() {
		invoice := s.invoice(100_000)

		first := s.pay(invoice.ID, 40_000, "ref-1")
		s.Equal(models.InvoicePartiallyPaid, first.Invoice.Status)
		s.Equal(int64(40_000), first.Invoice.AmountPaidCents)
		s.Equal(int64(60_000), first.Invoice.Balance())
		s.Equal("PAY-2026-00001", first.Payment.Number)

		second := s.pay(invoice.ID, 60_000, "ref-2")
		s.Equal(models.InvoicePaid, second.Invoice.Status)
		s.Equal(int64(0), second.Invoice.Balance())
		s.Require().NotNil(second.Invoice.PaidAt)
		s.Equal(s.now, *second.Invoice.PaidAt)
	})

	s.Run("paying a paid invoice fails and records nothing", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 100_000, "ref-1")

		_, err := s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
			InvoiceID:   invoice.ID,
			AmountCents: 1_000,
			Method:      models.MethodCash,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		payments, listErr := s.payments.ListByInvoice(s.ctx(), invoice.ID)
		s.NoError(listErr)
		s.Len(payments, 1)
	})

	s.Run("paying a cancelled invoice fails", func() {
		invoice := s.invoice(100_000)
		_, err := s.service.Cancel(s.ctx(), invoice.ID)
		s.Require().NoError(err)

		_, err = s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
			InvoiceID:   invoice.ID,
			AmountCents: 1_000,
			Method:      models.MethodCash,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("refund moves a paid invoice back to partially paid", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 100_000, "ref-1")

		refund := s.pay(invoice.ID, -30_000, "refund-1")
		s.Equal(models.InvoicePartiallyPaid, refund.Invoice.Status)
		s.Equal(int64(70_000), refund.Invoice.AmountPaidCents)
		s.Equal(int64(30_000), refund.Invoice.Balance())
		s.Nil(refund.Invoice.PaidAt)
	})

	s.Run("refund larger than the amount paid fails", func() {
		invoice := s.invoice(100_000)

		_, err := s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
			InvoiceID:   invoice.ID,
			AmountCents: -30_000,
			Method:      models.MethodTransfer,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		stored, getErr := s.service.Get(s.ctx(), invoice.ID)
		s.Require().NoError(getErr)
		s.Equal(int64(0), stored.AmountPaidCents, "amount paid can never go below zero")
		s.Equal(models.InvoiceUnpaid, stored.Status)
	})

	s.Run("refund below the partially paid sum fails and leaves the invoice alone", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 20_000, "ref-floor")

		_, err := s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
			InvoiceID:   invoice.ID,
			AmountCents: -50_000,
			Method:      models.MethodTransfer,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		stored, getErr := s.service.Get(s.ctx(), invoice.ID)
		s.Require().NoError(getErr)
		s.Equal(int64(20_000), stored.AmountPaidCents)

		payments, listErr := s.payments.ListByInvoice(s.ctx(), invoice.ID)
		s.NoError(listErr)
		s.Len(payments, 1, "the rejected refund must not leave a payment row")
	})

	s.Run("retrying the same reference does not double-apply", func() {
		invoice := s.invoice(100_000)

		first := s.pay(invoice.ID, 40_000, "ref-1")
		retry := s.pay(invoice.ID, 40_000, "ref-1")

		s.Equal(first.Payment.ID, retry.Payment.ID)
		s.Equal(int64(40_000), retry.Invoice.AmountPaidCents)

		payments, err := s.payments.ListByInvoice(s.ctx(), invoice.ID)
		s.NoError(err)
		s.Len(payments, 1)
	})

	s.Run("overdue invoice still accepts payment", func() {
		invoice := s.invoice(100_000)

		afterDue := s.dueDate.AddDate(0, 0, 5)
		result, err := s.service.ApplyPayment(s.ctxAt(afterDue), ApplyPaymentInput{
			InvoiceID:   invoice.ID,
			AmountCents: 100_000,
			Method:      models.MethodTransfer,
		})
		s.Require().NoError(err)
		s.Equal(models.InvoicePaid, result.Invoice.Status)
	})

	s.Run("zero amount is rejected", func() {
		invoice := s.invoice(100_000)

		_, err := s.service.ApplyPayment(s.ctx(), ApplyPaymentInput{
			InvoiceID: invoice.ID,
			Method:    models.MethodCash,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Cancel Tests
// =============================================================================

func (s *BillingServiceSuite) TestCancel() {
	s.Run("cancels an untouched invoice", func() {
		invoice := s.invoice(100_000)

		cancelled, err := s.service.Cancel(s.ctx(), invoice.ID)
		s.NoError(err)
		s.Equal(models.InvoiceCancelled, cancelled.Status)
	})

	s.Run("fails once money has been applied", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 40_000, "ref-1")

		_, err := s.service.Cancel(s.ctx(), invoice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

// =============================================================================
// Repair Tests
// =============================================================================

func (s *BillingServiceSuite) TestRepair() {
	s.Run("heals drifted derived fields from the payment sum", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 40_000, "ref-1")

		// Simulate a lost invoice update after a durable payment write.
		broken, err := s.invoices.FindByID(s.ctx(), invoice.ID)
		s.Require().NoError(err)
		broken.AmountPaidCents = 0
		broken.Status = models.InvoiceUnpaid
		s.Require().NoError(s.invoices.Update(s.ctx(), broken))

		repaired, err := s.service.Get(s.ctx(), invoice.ID)
		s.Require().NoError(err)
		s.Equal(int64(40_000), repaired.AmountPaidCents)
		s.Equal(models.InvoicePartiallyPaid, repaired.Status)

		events, err := s.auditStore.ListByEntity(s.ctx(), audit.EntityInvoice, invoice.ID.String())
		s.NoError(err)
		var repairs int
		for _, event := range events {
			if event.Action == string(audit.EventInvoiceRepaired) {
				repairs++
			}
		}
		s.Equal(1, repairs)
	})

	s.Run("repair is idempotent on a consistent invoice", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 40_000, "ref-1")

		first, err := s.service.Repair(s.ctx(), invoice.ID)
		s.Require().NoError(err)
		second, err := s.service.Repair(s.ctx(), invoice.ID)
		s.Require().NoError(err)
		s.Equal(first.AmountPaidCents, second.AmountPaidCents)
		s.Equal(first.Status, second.Status)
	})

	s.Run("voided payments fall out of the repair sum", func() {
		invoice := s.invoice(100_000)
		result := s.pay(invoice.ID, 40_000, "ref-1")

		voided, err := s.service.VoidPayment(s.ctx(), result.Payment.ID)
		s.Require().NoError(err)
		s.Equal(models.PaymentVoided, voided.Payment.Status)
		s.Equal(int64(0), voided.Invoice.AmountPaidCents)
		s.Equal(models.InvoiceUnpaid, voided.Invoice.Status)
	})

	s.Run("voiding a charge while a refund remains fails", func() {
		invoice := s.invoice(100_000)
		charge := s.pay(invoice.ID, 100_000, "ref-1")
		s.pay(invoice.ID, -30_000, "refund-1")

		_, err := s.service.VoidPayment(s.ctx(), charge.Payment.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		stored, getErr := s.service.Get(s.ctx(), invoice.ID)
		s.Require().NoError(getErr)
		s.Equal(int64(70_000), stored.AmountPaidCents, "the paid sum must never go negative")
	})
}

// =============================================================================
// Overdue Tests
// =============================================================================

func (s *BillingServiceSuite) TestOverdue() {
	s.Run("read past the due date reclassifies lazily", func() {
		invoice := s.invoice(100_000)
		s.Equal(models.InvoiceUnpaid, invoice.Status)

		afterDue := s.dueDate.AddDate(0, 0, 1)
		got, err := s.service.Get(s.ctxAt(afterDue), invoice.ID)
		s.Require().NoError(err)
		s.Equal(models.InvoiceOverdue, got.Status)

		// The reclassification is persisted.
		stored, err := s.invoices.FindByID(s.ctx(), invoice.ID)
		s.Require().NoError(err)
		s.Equal(models.InvoiceOverdue, stored.Status)
	})

	s.Run("paid invoices never go overdue", func() {
		invoice := s.invoice(100_000)
		s.pay(invoice.ID, 100_000, "ref-1")

		afterDue := s.dueDate.AddDate(0, 0, 1)
		got, err := s.service.Get(s.ctxAt(afterDue), invoice.ID)
		s.Require().NoError(err)
		s.Equal(models.InvoicePaid, got.Status)
	})

	s.Run("list applies the reclassification in memory", func() {
		s.invoice(100_000)

		afterDue := s.dueDate.AddDate(0, 0, 1)
		invoices, err := s.service.ListByStudent(s.ctxAt(afterDue), s.student.ID)
		s.Require().NoError(err)
		s.Require().NotEmpty(invoices)
		s.Equal(models.InvoiceOverdue, invoices[0].Status)
	})
}

// =============================================================================
// Tenancy Tests
// =============================================================================

func (s *BillingServiceSuite) TestTenancy() {
	s.Run("cross-tenant get reads as not found", func() {
		invoice := s.invoice(100_000)

		foreignCtx := requestcontext.WithActor(context.Background(), requestcontext.ActorContext{
			ActorID:  "bursar-2",
			TenantID: id.NewTenantID(),
			Role:     id.RoleBursar,
		})
		_, err := s.service.Get(foreignCtx, invoice.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
