package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"registra/internal/billing/models"
	id "registra/pkg/domain"
	"registra/pkg/platform/sentinel"
)

// InMemoryInvoiceStore mirrors the PostgreSQL invoice store's uniqueness
// semantics for unit tests.
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[id.InvoiceID]*models.Invoice
	numbers  map[string]bool
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices: make(map[id.InvoiceID]*models.Invoice),
		numbers:  make(map[string]bool),
	}
}

func numberKey(tenantID id.TenantID, number string) string {
	return fmt.Sprintf("%s:%s", tenantID, number)
}

func (s *InMemoryInvoiceStore) Create(_ context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := numberKey(invoice.TenantID, invoice.Number)
	if s.numbers[key] {
		return fmt.Errorf("invoice number exists: %w", sentinel.ErrConflict)
	}
	copied := *invoice
	s.invoices[invoice.ID] = &copied
	s.numbers[key] = true
	return nil
}

func (s *InMemoryInvoiceStore) FindByID(_ context.Context, invoiceID id.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (s *InMemoryInvoiceStore) Update(_ context.Context, invoice *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[invoice.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *invoice
	s.invoices[invoice.ID] = &copied
	return nil
}

type invoiceSnapshot struct {
	invoices map[id.InvoiceID]*models.Invoice
	numbers  map[string]bool
}

// Snapshot and Restore back the MemoryRunner's rollback. Stored values are
// replaced on write, never mutated, so copying the maps is enough.
func (s *InMemoryInvoiceStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := invoiceSnapshot{
		invoices: make(map[id.InvoiceID]*models.Invoice, len(s.invoices)),
		numbers:  make(map[string]bool, len(s.numbers)),
	}
	for k, v := range s.invoices {
		snap.invoices[k] = v
	}
	for k, v := range s.numbers {
		snap.numbers[k] = v
	}
	return snap
}

func (s *InMemoryInvoiceStore) Restore(snapshot any) {
	snap, ok := snapshot.(invoiceSnapshot)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = snap.invoices
	s.numbers = snap.numbers
}

func (s *InMemoryInvoiceStore) ListByStudent(_ context.Context, studentID id.StudentID) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Invoice
	for _, invoice := range s.invoices {
		if invoice.StudentID == studentID {
			copied := *invoice
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InMemoryPaymentStore mirrors the PostgreSQL payment store's uniqueness
// semantics, including the (invoice, reference) retry key.
type InMemoryPaymentStore struct {
	mu       sync.RWMutex
	payments map[id.PaymentID]*models.Payment
}

func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{payments: make(map[id.PaymentID]*models.Payment)}
}

func (s *InMemoryPaymentStore) Create(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.payments {
		if existing.TenantID == payment.TenantID && existing.Number == payment.Number {
			return fmt.Errorf("payment number exists: %w", sentinel.ErrConflict)
		}
		if payment.Reference != "" && existing.InvoiceID == payment.InvoiceID && existing.Reference == payment.Reference {
			return fmt.Errorf("payment reference exists: %w", sentinel.ErrConflict)
		}
	}
	copied := *payment
	s.payments[payment.ID] = &copied
	return nil
}

func (s *InMemoryPaymentStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payment, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *payment
	return &copied, nil
}

func (s *InMemoryPaymentStore) FindByReference(_ context.Context, invoiceID id.InvoiceID, reference string) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, payment := range s.payments {
		if payment.InvoiceID == invoiceID && payment.Reference == reference {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryPaymentStore) Update(_ context.Context, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *payment
	s.payments[payment.ID] = &copied
	return nil
}

// Snapshot and Restore back the MemoryRunner's rollback.
func (s *InMemoryPaymentStore) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[id.PaymentID]*models.Payment, len(s.payments))
	for k, v := range s.payments {
		cp[k] = v
	}
	return cp
}

func (s *InMemoryPaymentStore) Restore(snapshot any) {
	m, ok := snapshot.(map[id.PaymentID]*models.Payment)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = m
}

func (s *InMemoryPaymentStore) ListByInvoice(_ context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Payment
	for _, payment := range s.payments {
		if payment.InvoiceID == invoiceID {
			copied := *payment
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}
