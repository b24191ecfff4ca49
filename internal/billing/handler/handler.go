package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registra/internal/billing/models"
	"registra/internal/billing/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Service defines the interface for financial ledger operations.
type Service interface {
	CreateInvoice(ctx context.Context, in service.CreateInvoiceInput) (*models.Invoice, error)
	ApplyPayment(ctx context.Context, in service.ApplyPaymentInput) (*service.PaymentResult, error)
	VoidPayment(ctx context.Context, paymentID id.PaymentID) (*service.PaymentResult, error)
	Cancel(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	Get(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	Repair(ctx context.Context, invoiceID id.InvoiceID) (*models.Invoice, error)
	ListByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Invoice, error)
	ListPayments(ctx context.Context, invoiceID id.InvoiceID) ([]*models.Payment, error)
}

// Handler wires billing endpoints to the financial ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a billing handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts billing endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/invoices", h.HandleCreateInvoice)
	r.Get("/invoices/{invoiceID}", h.HandleGetInvoice)
	r.Post("/invoices/{invoiceID}/payments", h.HandleApplyPayment)
	r.Get("/invoices/{invoiceID}/payments", h.HandleListPayments)
	r.Post("/invoices/{invoiceID}/cancel", h.HandleCancelInvoice)
	r.Post("/invoices/{invoiceID}/repair", h.HandleRepairInvoice)
	r.Post("/payments/{paymentID}/void", h.HandleVoidPayment)
	r.Get("/students/{studentID}/invoices", h.HandleStudentInvoices)
}

// HandleCreateInvoice handles POST /invoices requests.
func (h *Handler) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateInvoiceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	invoice, err := h.service.CreateInvoice(ctx, service.CreateInvoiceInput{
		StudentID:      req.ParsedStudentID(),
		PrincipalCents: req.PrincipalCents,
		Currency:       req.Currency,
		DueDate:        req.ParsedDueDate(),
		Term:           req.ParsedTerm(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "invoice creation failed",
			"request_id", requestID,
			"student_id", req.StudentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invoice created",
		"request_id", requestID,
		"invoice_id", invoice.ID,
		"number", invoice.Number,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromInvoice(invoice))
}

// HandleApplyPayment handles POST /invoices/{invoiceID}/payments requests.
func (h *Handler) HandleApplyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[ApplyPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.ApplyPayment(ctx, service.ApplyPaymentInput{
		InvoiceID:   invoiceID,
		AmountCents: req.AmountCents,
		Method:      models.Method(req.Method),
		Reference:   req.Reference,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "payment application failed",
			"request_id", requestID,
			"invoice_id", invoiceID,
			"amount_cents", req.AmountCents,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "payment applied",
		"request_id", requestID,
		"invoice_id", invoiceID,
		"payment_id", result.Payment.ID,
		"amount_cents", req.AmountCents,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromPaymentResult(result))
}

// HandleVoidPayment handles POST /payments/{paymentID}/void requests.
func (h *Handler) HandleVoidPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid payment id"))
		return
	}

	result, err := h.service.VoidPayment(ctx, paymentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "payment void failed",
			"request_id", requestID,
			"payment_id", paymentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "payment voided",
		"request_id", requestID,
		"payment_id", paymentID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromPaymentResult(result))
}

// HandleCancelInvoice handles POST /invoices/{invoiceID}/cancel requests.
func (h *Handler) HandleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice id"))
		return
	}

	invoice, err := h.service.Cancel(ctx, invoiceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "invoice cancellation failed",
			"request_id", requestID,
			"invoice_id", invoiceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "invoice cancelled",
		"request_id", requestID,
		"invoice_id", invoiceID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromInvoice(invoice))
}

// HandleRepairInvoice handles POST /invoices/{invoiceID}/repair requests.
func (h *Handler) HandleRepairInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice id"))
		return
	}

	invoice, err := h.service.Repair(ctx, invoiceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInvoice(invoice))
}

// HandleGetInvoice handles GET /invoices/{invoiceID} requests.
func (h *Handler) HandleGetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice id"))
		return
	}

	invoice, err := h.service.Get(ctx, invoiceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInvoice(invoice))
}

// HandleListPayments handles GET /invoices/{invoiceID}/payments requests.
func (h *Handler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := id.ParseInvoiceID(chi.URLParam(r, "invoiceID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid invoice id"))
		return
	}

	payments, err := h.service.ListPayments(ctx, invoiceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPayments(payments))
}

// HandleStudentInvoices handles GET /students/{studentID}/invoices requests.
func (h *Handler) HandleStudentInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}

	invoices, err := h.service.ListByStudent(ctx, studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromInvoices(invoices))
}
