package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registra/internal/student/models"
	"registra/internal/student/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Service defines the interface for student operations.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.Student, error)
	Withdraw(ctx context.Context, studentID id.StudentID) (*models.Student, error)
	Get(ctx context.Context, studentID id.StudentID) (*models.Student, error)
	List(ctx context.Context, tenantID id.TenantID) ([]*models.Student, error)
}

// Handler wires student endpoints to the student service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a student handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts student endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/students", h.HandleRegister)
	r.Get("/students", h.HandleList)
	r.Get("/students/{studentID}", h.HandleGet)
	r.Post("/students/{studentID}/withdraw", h.HandleWithdraw)
}

// HandleRegister handles POST /students requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, err := requestcontext.RequireActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	student, err := h.service.Register(ctx, service.RegisterInput{
		TenantID:    actor.TenantID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AdmissionNo: req.AdmissionNo,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "student registration failed",
			"request_id", requestID,
			"admission_no", req.AdmissionNo,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "student registered",
		"request_id", requestID,
		"student_id", student.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromStudent(student))
}

// HandleWithdraw handles POST /students/{studentID}/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}

	student, err := h.service.Withdraw(ctx, studentID)
	if err != nil {
		h.logger.ErrorContext(ctx, "student withdrawal failed",
			"request_id", requestID,
			"student_id", studentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "student withdrawn",
		"request_id", requestID,
		"student_id", studentID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromStudent(student))
}

// HandleGet handles GET /students/{studentID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}

	student, err := h.service.Get(ctx, studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStudent(student))
}

// HandleList handles GET /students requests, scoped to the actor's tenant.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := requestcontext.RequireActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	students, err := h.service.List(ctx, actor.TenantID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStudents(students))
}
