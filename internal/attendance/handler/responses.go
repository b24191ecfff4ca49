package handler

import (
	"time"

	"registra/internal/attendance/models"
)

// RecordResponse is the HTTP representation of a presence record. Placeholder
// rows (status unset) have no id or timestamps.
type RecordResponse struct {
	ID          string     `json:"id,omitempty"`
	TenantID    string     `json:"tenant_id"`
	StudentID   string     `json:"student_id"`
	ClassID     string     `json:"class_id"`
	Term        string     `json:"term"`
	Day         string     `json:"day"`
	Status      string     `json:"status"`
	ArrivalTime *time.Time `json:"arrival_time,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	RecordedBy  string     `json:"recorded_by,omitempty"`
}

// FromRecord converts a domain record to an HTTP response.
func FromRecord(record *models.Record) *RecordResponse {
	resp := &RecordResponse{
		TenantID:    record.TenantID.String(),
		StudentID:   record.StudentID.String(),
		ClassID:     record.ClassID.String(),
		Term:        record.Term.String(),
		Day:         record.Day.Format("2006-01-02"),
		Status:      string(record.Status),
		ArrivalTime: record.ArrivalTime,
		Notes:       record.Notes,
		RecordedBy:  record.RecordedBy,
	}
	if !record.ID.IsNil() {
		resp.ID = record.ID.String()
	}
	return resp
}

// FromRecords converts a record list to HTTP responses.
func FromRecords(records []*models.Record) []*RecordResponse {
	out := make([]*RecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}
