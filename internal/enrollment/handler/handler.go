package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registra/internal/enrollment/models"
	"registra/internal/enrollment/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Service defines the interface for membership ledger operations.
type Service interface {
	Enroll(ctx context.Context, in service.EnrollInput) (*models.Enrollment, error)
	Transfer(ctx context.Context, enrollmentID id.EnrollmentID, targetClassID id.ClassID, reason string) (*service.TransferResult, error)
	Complete(ctx context.Context, enrollmentID id.EnrollmentID, finalGrade string) (*models.Enrollment, error)
	Withdraw(ctx context.Context, enrollmentID id.EnrollmentID, reason string) (*models.Enrollment, error)
	Suspend(ctx context.Context, enrollmentID id.EnrollmentID, reason string) (*models.Enrollment, error)
	Get(ctx context.Context, enrollmentID id.EnrollmentID) (*models.Enrollment, error)
	FindActiveByStudent(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error)
	FindActiveByClass(ctx context.Context, classID id.ClassID) ([]*models.Enrollment, error)
	History(ctx context.Context, studentID id.StudentID) ([]*models.Enrollment, error)
}

// Handler wires enrollment endpoints to the membership ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an enrollment handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts enrollment endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/enrollments", h.HandleEnroll)
	r.Get("/enrollments/{enrollmentID}", h.HandleGet)
	r.Post("/enrollments/{enrollmentID}/transfer", h.HandleTransfer)
	r.Post("/enrollments/{enrollmentID}/complete", h.HandleComplete)
	r.Post("/enrollments/{enrollmentID}/withdraw", h.HandleWithdraw)
	r.Post("/enrollments/{enrollmentID}/suspend", h.HandleSuspend)
	r.Get("/students/{studentID}/enrollments", h.HandleStudentEnrollments)
	r.Get("/students/{studentID}/enrollments/history", h.HandleStudentHistory)
	r.Get("/classes/{classID}/roster", h.HandleClassRoster)
}

// HandleEnroll handles POST /enrollments requests.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	enrollment, err := h.service.Enroll(ctx, service.EnrollInput{
		StudentID: req.ParsedStudentID(),
		ClassID:   req.ParsedClassID(),
		Term:      req.ParsedTerm(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "enrollment failed",
			"request_id", requestID,
			"student_id", req.StudentID,
			"class_id", req.ClassID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "student enrolled",
		"request_id", requestID,
		"enrollment_id", enrollment.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromEnrollment(enrollment))
}

// HandleTransfer handles POST /enrollments/{enrollmentID}/transfer requests.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	enrollmentID, err := id.ParseEnrollmentID(chi.URLParam(r, "enrollmentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid enrollment id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Transfer(ctx, enrollmentID, req.ParsedTargetClassID(), req.Reason)
	if err != nil {
		h.logger.ErrorContext(ctx, "enrollment transfer failed",
			"request_id", requestID,
			"enrollment_id", enrollmentID,
			"target_class_id", req.TargetClassID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "enrollment transferred",
		"request_id", requestID,
		"enrollment_id", enrollmentID,
		"successor_id", result.Successor.ID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromTransferResult(result))
}

// HandleComplete handles POST /enrollments/{enrollmentID}/complete requests.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "completed", func(ctx context.Context, enrollmentID id.EnrollmentID, req *TransitionRequest) (*models.Enrollment, error) {
		return h.service.Complete(ctx, enrollmentID, req.FinalGrade)
	})
}

// HandleWithdraw handles POST /enrollments/{enrollmentID}/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "withdrawn", func(ctx context.Context, enrollmentID id.EnrollmentID, req *TransitionRequest) (*models.Enrollment, error) {
		return h.service.Withdraw(ctx, enrollmentID, req.Reason)
	})
}

// HandleSuspend handles POST /enrollments/{enrollmentID}/suspend requests.
func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "suspended", func(ctx context.Context, enrollmentID id.EnrollmentID, req *TransitionRequest) (*models.Enrollment, error) {
		return h.service.Suspend(ctx, enrollmentID, req.Reason)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, verb string,
	call func(ctx context.Context, enrollmentID id.EnrollmentID, req *TransitionRequest) (*models.Enrollment, error)) {

	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	enrollmentID, err := id.ParseEnrollmentID(chi.URLParam(r, "enrollmentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid enrollment id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	enrollment, err := call(ctx, enrollmentID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "enrollment transition failed",
			"request_id", requestID,
			"enrollment_id", enrollmentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "enrollment "+verb,
		"request_id", requestID,
		"enrollment_id", enrollmentID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromEnrollment(enrollment))
}

// HandleGet handles GET /enrollments/{enrollmentID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrollmentID, err := id.ParseEnrollmentID(chi.URLParam(r, "enrollmentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid enrollment id"))
		return
	}

	enrollment, err := h.service.Get(ctx, enrollmentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEnrollment(enrollment))
}

// HandleStudentEnrollments handles GET /students/{studentID}/enrollments.
func (h *Handler) HandleStudentEnrollments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}

	enrollments, err := h.service.FindActiveByStudent(ctx, studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEnrollments(enrollments))
}

// HandleStudentHistory handles GET /students/{studentID}/enrollments/history.
func (h *Handler) HandleStudentHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}

	enrollments, err := h.service.History(ctx, studentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEnrollments(enrollments))
}

// HandleClassRoster handles GET /classes/{classID}/roster.
func (h *Handler) HandleClassRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}

	enrollments, err := h.service.FindActiveByClass(ctx, classID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEnrollments(enrollments))
}
