package handler

import (
	"time"

	"registra/internal/attendance/models"
	"registra/internal/attendance/service"
	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// MarkRequest is the HTTP request body for POST /classes/{classID}/attendance.
type MarkRequest struct {
	Day     string         `json:"day"`
	Entries []EntryRequest `json:"entries"`

	// Parsed values (populated by Validate)
	parsedDay     time.Time
	parsedEntries []service.Entry
}

// EntryRequest is one student's outcome within a marking batch.
type EntryRequest struct {
	StudentID   string `json:"student_id"`
	Status      string `json:"status"`
	ArrivalTime string `json:"arrival_time,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *MarkRequest) Validate() error {
	day, err := time.Parse("2006-01-02", r.Day)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "day must be YYYY-MM-DD")
	}
	r.parsedDay = day

	if len(r.Entries) == 0 {
		return dErrors.New(dErrors.CodeValidation, "entries is required")
	}

	r.parsedEntries = make([]service.Entry, 0, len(r.Entries))
	for _, entry := range r.Entries {
		studentID, err := id.ParseStudentID(entry.StudentID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "entries[].student_id is required")
		}
		status := models.Status(entry.Status)
		if !status.Recordable() {
			return dErrors.Newf(dErrors.CodeValidation, "entries[].status %q is not a valid attendance status", entry.Status)
		}
		parsed := service.Entry{StudentID: studentID, Status: status, Notes: entry.Notes}
		if entry.ArrivalTime != "" {
			arrival, err := time.Parse(time.RFC3339, entry.ArrivalTime)
			if err != nil {
				return dErrors.New(dErrors.CodeValidation, "entries[].arrival_time must be RFC 3339")
			}
			parsed.ArrivalTime = &arrival
		}
		r.parsedEntries = append(r.parsedEntries, parsed)
	}
	return nil
}

// ParsedDay returns the validated day.
func (r *MarkRequest) ParsedDay() time.Time {
	return r.parsedDay
}

// ParsedEntries returns the validated entries.
func (r *MarkRequest) ParsedEntries() []service.Entry {
	return r.parsedEntries
}
