package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"registra/internal/attendance/models"
	"registra/internal/attendance/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	"registra/pkg/platform/httputil"
	"registra/pkg/requestcontext"
)

// Service defines the interface for presence ledger operations.
type Service interface {
	MarkClassAttendance(ctx context.Context, in service.MarkInput) ([]*models.Record, error)
	GetClassAttendance(ctx context.Context, classID id.ClassID, day time.Time) ([]*models.Record, error)
	GetStudentAttendance(ctx context.Context, studentID id.StudentID, from, to time.Time) ([]*models.Record, error)
	GetStatistics(ctx context.Context, studentID id.StudentID, from, to time.Time) (models.Stats, error)
	GetClassReport(ctx context.Context, classID id.ClassID, from, to time.Time) ([]service.ReportRow, error)
}

// Handler wires attendance endpoints to the presence ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an attendance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts attendance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/classes/{classID}/attendance", h.HandleMark)
	r.Get("/classes/{classID}/attendance", h.HandleClassDay)
	r.Get("/classes/{classID}/attendance/report", h.HandleClassReport)
	r.Get("/students/{studentID}/attendance", h.HandleStudentRange)
	r.Get("/students/{studentID}/attendance/statistics", h.HandleStatistics)
}

// HandleMark handles POST /classes/{classID}/attendance requests.
func (h *Handler) HandleMark(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[MarkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	records, err := h.service.MarkClassAttendance(ctx, service.MarkInput{
		ClassID: classID,
		Day:     req.ParsedDay(),
		Entries: req.ParsedEntries(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "attendance marking failed",
			"request_id", requestID,
			"class_id", classID,
			"day", req.Day,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "attendance marked",
		"request_id", requestID,
		"class_id", classID,
		"day", req.Day,
		"records", len(records),
	)
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleClassDay handles GET /classes/{classID}/attendance?day= requests.
func (h *Handler) HandleClassDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}
	day, err := parseDay(r.URL.Query().Get("day"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.GetClassAttendance(ctx, classID, day)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleClassReport handles GET /classes/{classID}/attendance/report requests.
func (h *Handler) HandleClassReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	classID, err := id.ParseClassID(chi.URLParam(r, "classID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid class id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.service.GetClassReport(ctx, classID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleStudentRange handles GET /students/{studentID}/attendance requests.
func (h *Handler) HandleStudentRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.GetStudentAttendance(ctx, studentID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(records))
}

// HandleStatistics handles GET /students/{studentID}/attendance/statistics.
func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := id.ParseStudentID(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid student id"))
		return
	}
	from, to, err := parseRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	stats, err := h.service.GetStatistics(ctx, studentID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func parseDay(raw string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "day query parameter must be YYYY-MM-DD")
	}
	return day, nil
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	from, err := parseDay(r.URL.Query().Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "from query parameter must be YYYY-MM-DD")
	}
	to, err := parseDay(r.URL.Query().Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "to query parameter must be YYYY-MM-DD")
	}
	return from, to, nil
}
