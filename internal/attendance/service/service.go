// Package service is the presence ledger. It records one outcome per
// (student, day), validated against the membership ledger's active roster.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	attendancemetrics "registra/internal/attendance/metrics"
	"registra/internal/attendance/models"
	"registra/internal/attendance/store"
	classmodels "registra/internal/class/models"
	enrollmentmodels "registra/internal/enrollment/models"
	studentmodels "registra/internal/student/models"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
	audit "registra/pkg/platform/audit"
	"registra/pkg/platform/sentinel"
	"registra/pkg/platform/tx"
	"registra/pkg/requestcontext"
)

// RosterReader is the slice of the membership ledger the presence ledger
// needs: the active membership set of a class.
type RosterReader interface {
	FindActiveByClass(ctx context.Context, classID id.ClassID) ([]*enrollmentmodels.Enrollment, error)
}

// ClassReader resolves marking targets.
type ClassReader interface {
	FindByID(ctx context.Context, classID id.ClassID) (*classmodels.Class, error)
}

// StudentReader resolves display names for reports.
type StudentReader interface {
	FindByID(ctx context.Context, studentID id.StudentID) (*studentmodels.Student, error)
}

// AuditPublisher emits structured audit events for every mutation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the presence ledger.
type Service struct {
	records        store.Store
	roster         RosterReader
	classes        ClassReader
	students       StudentReader
	runner         tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *attendancemetrics.Metrics
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

func WithMetrics(m *attendancemetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) {
		s.runner = runner
	}
}

// New constructs the presence ledger service.
func New(records store.Store, roster RosterReader, classes ClassReader, students StudentReader, opts ...Option) *Service {
	s := &Service{records: records, roster: roster, classes: classes, students: students}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = tx.NewMemoryRunner(records)
	}
	return s
}

// Entry is one student's outcome within a class marking batch.
type Entry struct {
	StudentID   id.StudentID
	Status      models.Status
	ArrivalTime *time.Time
	Notes       string
}

// MarkInput is a whole-class marking batch for one day.
type MarkInput struct {
	ClassID id.ClassID
	Day     time.Time
	Entries []Entry
}

// batchCounts is the audit payload summarizing a marking batch.
type batchCounts struct {
	Day      string         `json:"day"`
	ClassID  string         `json:"class_id"`
	ByStatus map[string]int `json:"by_status"`
	Total    int            `json:"total"`
}

// MarkClassAttendance records presence for a class on one day.
//
// The day is normalized to midnight UTC. Every entry must target a student
// with an active enrollment in the class; the validation error names every
// offender at once so the caller can fix the batch in one round trip. The
// batch is applied in a single transaction, upserting on (student, day), so
// re-submitting the same batch is idempotent. One audit event summarizes the
// batch with per-status counts.
func (s *Service) MarkClassAttendance(ctx context.Context, in MarkInput) ([]*models.Record, error) {
	class, err := s.loadClass(ctx, in.ClassID)
	if err != nil {
		return nil, err
	}
	if len(in.Entries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one attendance entry is required")
	}

	day := models.NormalizeDay(in.Day)

	roster, err := s.roster.FindActiveByClass(ctx, in.ClassID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class roster")
	}
	active := make(map[id.StudentID]*enrollmentmodels.Enrollment, len(roster))
	for _, enrollment := range roster {
		active[enrollment.StudentID] = enrollment
	}

	// Collect every offender before failing: students outside the active
	// roster, unknown statuses, and duplicate targets.
	var offenders []string
	seen := make(map[id.StudentID]bool, len(in.Entries))
	for _, entry := range in.Entries {
		if seen[entry.StudentID] {
			offenders = append(offenders, fmt.Sprintf("%s (duplicate)", entry.StudentID))
			continue
		}
		seen[entry.StudentID] = true
		if !entry.Status.Recordable() {
			offenders = append(offenders, fmt.Sprintf("%s (status %q)", entry.StudentID, entry.Status))
			continue
		}
		if _, ok := active[entry.StudentID]; !ok {
			offenders = append(offenders, fmt.Sprintf("%s (not active in class)", entry.StudentID))
		}
	}
	if len(offenders) > 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid attendance entries: %s", strings.Join(offenders, ", "))
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	counts := batchCounts{Day: day.Format("2006-01-02"), ClassID: in.ClassID.String(), ByStatus: make(map[string]int)}

	records := make([]*models.Record, 0, len(in.Entries))
	for _, entry := range in.Entries {
		// Class and term denormalize from the membership used in validation.
		membership := active[entry.StudentID]
		record, err := models.NewRecord(id.NewAttendanceID(), class.TenantID, entry.StudentID,
			membership.ClassID, membership.Term, day, entry.Status, entry.ArrivalTime,
			entry.Notes, actor.ActorID, now)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		records = append(records, record)
		counts.ByStatus[string(entry.Status)]++
		counts.Total++
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		return s.records.BulkUpsert(txCtx, records)
	})
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
		s.emit(ctx, audit.EventAttendanceMarked, in.ClassID.String(), class.TenantID, false, dErrors.MessageOf(err), snapshot(counts))
		return nil, err
	}

	s.emit(ctx, audit.EventAttendanceMarked, in.ClassID.String(), class.TenantID, true, "", snapshot(counts))
	if s.metrics != nil {
		s.metrics.ObserveBatch(len(records))
	}
	return records, nil
}

// GetClassAttendance returns the recorded entries for a class on one day.
// Roster members with no record yet come back as status-unset placeholders so
// callers can render an unmarked roster without a second query.
func (s *Service) GetClassAttendance(ctx context.Context, classID id.ClassID, day time.Time) ([]*models.Record, error) {
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	day = models.NormalizeDay(day)

	records, err := s.records.ListByClassDay(ctx, classID, day)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	recorded := make(map[id.StudentID]bool, len(records))
	for _, record := range records {
		recorded[record.StudentID] = true
	}

	roster, err := s.roster.FindActiveByClass(ctx, classID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class roster")
	}
	for _, enrollment := range roster {
		if !recorded[enrollment.StudentID] {
			records = append(records, models.Placeholder(class.TenantID, enrollment.StudentID, enrollment.ClassID, enrollment.Term, day))
		}
	}
	return records, nil
}

// GetStudentAttendance returns a student's records over an inclusive day
// range, oldest first.
func (s *Service) GetStudentAttendance(ctx context.Context, studentID id.StudentID, from, to time.Time) ([]*models.Record, error) {
	if err := s.checkStudent(ctx, studentID); err != nil {
		return nil, err
	}
	from, to, err := normalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByStudentRange(ctx, studentID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	return records, nil
}

// GetStatistics aggregates a student's outcomes over an inclusive day range.
func (s *Service) GetStatistics(ctx context.Context, studentID id.StudentID, from, to time.Time) (models.Stats, error) {
	records, err := s.GetStudentAttendance(ctx, studentID, from, to)
	if err != nil {
		return models.Stats{}, err
	}
	return models.ComputeStats(records), nil
}

// ReportRow is one student's aggregate within a class report.
type ReportRow struct {
	StudentID   id.StudentID `json:"student_id"`
	DisplayName string       `json:"display_name"`
	Stats       models.Stats `json:"stats"`
}

// GetClassReport aggregates per-student totals for a class over an inclusive
// day range, sorted by student display name.
func (s *Service) GetClassReport(ctx context.Context, classID id.ClassID, from, to time.Time) ([]ReportRow, error) {
	if _, err := s.loadClass(ctx, classID); err != nil {
		return nil, err
	}
	from, to, err := normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	records, err := s.records.ListByClassRange(ctx, classID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}

	byStudent := make(map[id.StudentID][]*models.Record)
	for _, record := range records {
		byStudent[record.StudentID] = append(byStudent[record.StudentID], record)
	}

	rows := make([]ReportRow, 0, len(byStudent))
	for studentID, studentRecords := range byStudent {
		row := ReportRow{StudentID: studentID, Stats: models.ComputeStats(studentRecords)}
		if student, err := s.students.FindByID(ctx, studentID); err == nil {
			row.DisplayName = student.DisplayName()
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DisplayName != rows[j].DisplayName {
			return rows[i].DisplayName < rows[j].DisplayName
		}
		return rows[i].StudentID.String() < rows[j].StudentID.String()
	})
	return rows, nil
}

func (s *Service) loadClass(ctx context.Context, classID id.ClassID) (*classmodels.Class, error) {
	if classID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "class id is required")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "class not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class")
	}
	if err := requestcontext.AuthorizeTenant(ctx, class.TenantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "class not found")
	}
	return class, nil
}

func (s *Service) checkStudent(ctx context.Context, studentID id.StudentID) error {
	if studentID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "student id is required")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load student")
	}
	if err := requestcontext.AuthorizeTenant(ctx, student.TenantID); err != nil {
		return dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	return nil
}

func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	from = models.NormalizeDay(from)
	to = models.NormalizeDay(to)
	if to.Before(from) {
		return time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "range end precedes range start")
	}
	return from, to, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID string, tenantID id.TenantID, success bool, reason string, after json.RawMessage) {
	if s.auditPublisher == nil {
		return
	}
	actor := requestcontext.Actor(ctx)
	event := audit.Event{
		Timestamp: requestcontext.Now(ctx),
		ActorID:   actor.ActorID,
		TenantID:  tenantID,
		Action:    string(action),
		Entity:    audit.EntityAttendance,
		EntityID:  entityID,
		Success:   success,
		Reason:    reason,
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
