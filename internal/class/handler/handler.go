package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registra/internal/class/models"
	"registra/internal/class/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Service defines the interface for class operations.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Class, error)
	Deactivate(ctx context.Context, classID id.ClassID) (*models.Class, error)
	Get(ctx context.Context, classID id.ClassID) (*models.Class, error)
	ListByTerm(ctx context.Context, tenantID id.TenantID, term id.Term) ([]*models.Class, error)
}

// Handler wires class endpoints to the class service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a class handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts class endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/classes", h.HandleCreate)
	r.Get("/classes", h.HandleListByTerm)
	r.Get("/classes/{classID}", h.HandleGet)
	r.Post("/classes/{classID}/deactivate", h.HandleDeactivate)
}

// HandleCreate handles POST /classes requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, err := requestcontext.RequireActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	class, err := h.service.Create(ctx, service.CreateInput{
		TenantID:  actor.TenantID,
		Name:      req.Name,
		Term:      req.ParsedTerm(),
		Capacity:  req.Capacity,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "class creation failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "class created",
		"request_id", requestID,
		"class_id", class.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromClass(class))
}

// HandleDeactivate handles POST /classes/{classID}/deactivate requests.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}

	class, err := h.service.Deactivate(ctx, classID)
	if err != nil {
		h.logger.ErrorContext(ctx, "class deactivation failed",
			"request_id", requestID,
			"class_id", classID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "class deactivated",
		"request_id", requestID,
		"class_id", classID,
	)
	httputil.WriteJSON(w, http.StatusOK, FromClass(class))
}

// HandleGet handles GET /classes/{classID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}

	class, err := h.service.Get(ctx, classID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClass(class))
}

// HandleListByTerm handles GET /classes?term= requests, scoped to the actor's
// tenant.
func (h *Handler) HandleListByTerm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, err := requestcontext.RequireActor(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	term, err := id.ParseTerm(r.URL.Query().Get("term"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "term query parameter is required"))
		return
	}

	classes, err := h.service.ListByTerm(ctx, actor.TenantID, term)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClasses(classes))
}
