package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registra/internal/billing/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
	txcontext "registra/pkg/platform/tx"
)

const uniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresInvoiceStore persists invoices in PostgreSQL. The unique index on
// (tenant_id, number) is the last line of defense for invoice numbering.
type PostgresInvoiceStore struct {
	db *sql.DB
}

// NewPostgresInvoices constructs a PostgreSQL-backed invoice store.
func NewPostgresInvoices(db *sql.DB) *PostgresInvoiceStore {
	return &PostgresInvoiceStore{db: db}
}

const invoiceColumns = `id, tenant_id, student_id, number, principal_cents, currency, amount_paid_cents, status, due_date, term, paid_at, created_at, updated_at`

func (s *PostgresInvoiceStore) Create(ctx context.Context, invoice *models.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(invoice.ID), uuid.UUID(invoice.TenantID), uuid.UUID(invoice.StudentID),
		invoice.Number, invoice.PrincipalCents, invoice.Currency,
		invoice.AmountPaidCents, string(invoice.Status), invoice.DueDate,
		invoice.Term.String(), invoice.PaidAt, invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("invoice number exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

func (s *PostgresInvoiceStore) FindByID(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	invoice, err := scanInvoice(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(invoiceID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invoice: %w", err)
	}
	return invoice, nil
}

func (s *PostgresInvoiceStore) Update(ctx context.Context, invoice *models.Invoice) error {
	query := `
		UPDATE invoices
		SET amount_paid_cents = $2, status = $3, paid_at = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(invoice.ID), invoice.AmountPaidCents, string(invoice.Status),
		invoice.PaidAt, invoice.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresInvoiceStore) ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE student_id = $1 ORDER BY created_at DESC`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(studentID))
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var (
		invoiceID uuid.UUID
		tenantID  uuid.UUID
		studentID uuid.UUID
		term      string
		status    string
		paidAt    sql.NullTime
		invoice   models.Invoice
	)
	err := row.Scan(&invoiceID, &tenantID, &studentID, &invoice.Number,
		&invoice.PrincipalCents, &invoice.Currency, &invoice.AmountPaidCents,
		&status, &invoice.DueDate, &term, &paidAt,
		&invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return nil, err
	}
	invoice.ID = id.InvoiceID(invoiceID)
	invoice.TenantID = id.TenantID(tenantID)
	invoice.StudentID = id.StudentID(studentID)
	invoice.Term = id.Term(term)
	invoice.Status = models.InvoiceStatus(status)
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}
	return &invoice, nil
}

// PostgresPaymentStore persists payments in PostgreSQL. Unique indexes on
// (tenant_id, number) and on (invoice_id, reference) WHERE reference <> ''
// give payments their numbering and retry-idempotency guarantees.
type PostgresPaymentStore struct {
	db *sql.DB
}

// NewPostgresPayments constructs a PostgreSQL-backed payment store.
func NewPostgresPayments(db *sql.DB) *PostgresPaymentStore {
	return &PostgresPaymentStore{db: db}
}

const paymentColumns = `id, tenant_id, invoice_id, student_id, number, amount_cents, method, reference, status, recorded_by, created_at`

func (s *PostgresPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(payment.ID), uuid.UUID(payment.TenantID), uuid.UUID(payment.InvoiceID),
		uuid.UUID(payment.StudentID), payment.Number, payment.AmountCents,
		string(payment.Method), payment.Reference, string(payment.Status),
		payment.RecordedBy, payment.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("payment exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *PostgresPaymentStore) FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(paymentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return payment, nil
}

func (s *PostgresPaymentStore) FindByReference(ctx context.Context, invoiceID id.InvoiceID, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 AND reference = $2`
	payment, err := scanPayment(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(invoiceID), reference))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find payment by reference: %w", err)
	}
	return payment, nil
}

func (s *PostgresPaymentStore) Update(ctx context.Context, payment *models.Payment) error {
	query := `UPDATE payments SET status = $2 WHERE id = $1`
	result, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(payment.ID), string(payment.Status))
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresPaymentStore) ListByInvoice(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 ORDER BY created_at`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(invoiceID))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		paymentID uuid.UUID
		tenantID  uuid.UUID
		invoiceID uuid.UUID
		studentID uuid.UUID
		method    string
		reference sql.NullString
		status    string
		recorded  sql.NullString
		payment   models.Payment
	)
	err := row.Scan(&paymentID, &tenantID, &invoiceID, &studentID,
		&payment.Number, &payment.AmountCents, &method, &reference,
		&status, &recorded, &payment.CreatedAt)
	if err != nil {
		return nil, err
	}
	payment.ID = id.PaymentID(paymentID)
	payment.TenantID = id.TenantID(tenantID)
	payment.InvoiceID = id.InvoiceID(invoiceID)
	payment.StudentID = id.StudentID(studentID)
	payment.Method = models.Method(method)
	payment.Reference = reference.String
	payment.Status = models.PaymentStatus(status)
	payment.RecordedBy = recorded.String
	return &payment, nil
}
