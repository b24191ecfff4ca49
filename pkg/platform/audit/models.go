package audit

import (
	"context"
	"encoding/json"
	"time"

	id "registra/pkg/domain"
)

// EntityKind names the record type an audit event is about.
type EntityKind string

const (
	EntityStudent    EntityKind = "student"
	EntityClass      EntityKind = "class"
	EntityEnrollment EntityKind = "enrollment"
	EntityAttendance EntityKind = "attendance"
	EntityInvoice    EntityKind = "invoice"
	EntityPayment    EntityKind = "payment"
)

// Event is emitted from ledger logic to capture every mutating operation,
// success or failure. Keep it transport-agnostic so stores and sinks can fan
// out.
type Event struct {
	Timestamp time.Time
	ActorID   string
	TenantID  id.TenantID
	Action    string
	Entity    EntityKind
	EntityID  string
	Success   bool
	Reason    string
	Before    json.RawMessage
	After     json.RawMessage
	RequestID string
}

// Action is the closed set of audited ledger operations.
type Action string

const (
	// Roster events
	EventStudentRegistered Action = "student_registered"
	EventStudentWithdrawn  Action = "student_withdrawn"
	EventClassCreated      Action = "class_created"
	EventClassDeactivated  Action = "class_deactivated"

	// Membership ledger events
	EventStudentEnrolled       Action = "student_enrolled"
	EventEnrollmentTransferred Action = "enrollment_transferred"
	EventEnrollmentCompleted   Action = "enrollment_completed"
	EventEnrollmentWithdrawn   Action = "enrollment_withdrawn"
	EventEnrollmentSuspended   Action = "enrollment_suspended"

	// Presence ledger events
	EventAttendanceMarked Action = "attendance_marked"

	// Financial ledger events
	EventInvoiceCreated   Action = "invoice_created"
	EventInvoiceCancelled Action = "invoice_cancelled"
	EventInvoiceRepaired  Action = "invoice_repaired"
	EventPaymentApplied   Action = "payment_applied"
)

// Store is the append-only sink contract. Implementations must never mutate
// or delete appended events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByEntity(ctx context.Context, kind EntityKind, entityID string) ([]Event, error)
}
