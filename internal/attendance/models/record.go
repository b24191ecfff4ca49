// Package models holds the presence ledger's record and aggregation types.
package models

import (
	"math"
	"time"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// Status is the recorded presence outcome for one student on one day.
//
// StatusUnset is a read-side placeholder for roster members with no record
// yet; it is never stored.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
	StatusSick    Status = "sick"
	StatusUnset   Status = "unset"
)

// Recordable reports whether the status may be written to storage.
func (s Status) Recordable() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused, StatusSick:
		return true
	default:
		return false
	}
}

// Record is one presence outcome for one (student, day).
//
// Invariants:
//   - At most one record per (student, day), regardless of class; enforced by
//     a unique index. Re-marking overwrites the existing row.
//   - Day carries no time-of-day component (midnight UTC).
//   - ClassID and Term are denormalized from the membership that was active
//     at write time, so reads never need a join.
type Record struct {
	ID          id.AttendanceID `json:"id"`
	TenantID    id.TenantID     `json:"tenant_id"`
	StudentID   id.StudentID    `json:"student_id"`
	ClassID     id.ClassID      `json:"class_id"`
	Term        id.Term         `json:"term"`
	Day         time.Time       `json:"day"`
	Status      Status          `json:"status"`
	ArrivalTime *time.Time      `json:"arrival_time,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	RecordedBy  string          `json:"recorded_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NormalizeDay strips the time-of-day component, anchoring the date in UTC.
func NormalizeDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// NewRecord builds a storable presence record with the day normalized.
func NewRecord(recordID id.AttendanceID, tenantID id.TenantID, studentID id.StudentID, classID id.ClassID, term id.Term, day time.Time, status Status, arrivalTime *time.Time, notes, recordedBy string, now time.Time) (*Record, error) {
	if tenantID.IsNil() || studentID.IsNil() || classID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attendance record requires tenant, student, and class")
	}
	if !status.Recordable() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "status %q cannot be recorded", status)
	}
	return &Record{
		ID:          recordID,
		TenantID:    tenantID,
		StudentID:   studentID,
		ClassID:     classID,
		Term:        term,
		Day:         NormalizeDay(day),
		Status:      status,
		ArrivalTime: arrivalTime,
		Notes:       notes,
		RecordedBy:  recordedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Placeholder synthesizes an unset entry for a roster member with no record.
func Placeholder(tenantID id.TenantID, studentID id.StudentID, classID id.ClassID, term id.Term, day time.Time) *Record {
	return &Record{
		TenantID:  tenantID,
		StudentID: studentID,
		ClassID:   classID,
		Term:      term,
		Day:       NormalizeDay(day),
		Status:    StatusUnset,
	}
}

// Stats aggregates presence outcomes over a range.
type Stats struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Excused    int `json:"excused"`
	Sick       int `json:"sick"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// Tally adds one outcome to the aggregate.
func (s *Stats) Tally(status Status) {
	switch status {
	case StatusPresent:
		s.Present++
	case StatusAbsent:
		s.Absent++
	case StatusLate:
		s.Late++
	case StatusExcused:
		s.Excused++
	case StatusSick:
		s.Sick++
	default:
		return
	}
	s.Total++
}

// Finalize computes the presence percentage, defined as 0 when no outcomes
// were recorded.
func (s *Stats) Finalize() {
	if s.Total == 0 {
		s.Percentage = 0
		return
	}
	s.Percentage = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
}

// ComputeStats aggregates a record set.
func ComputeStats(records []*Record) Stats {
	var stats Stats
	for _, record := range records {
		stats.Tally(record.Status)
	}
	stats.Finalize()
	return stats
}
