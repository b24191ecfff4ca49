package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Typed identifiers for the core entities. Wrapping uuid.UUID keeps ids from
// being mixed up across ledgers at compile time, and ParseX enforces validity
// at the boundary so services never see malformed ids.
type (
	TenantID     uuid.UUID
	StudentID    uuid.UUID
	ClassID      uuid.UUID
	EnrollmentID uuid.UUID
	AttendanceID uuid.UUID
	InvoiceID    uuid.UUID
	PaymentID    uuid.UUID
)

func parseID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%s id is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id: %w", kind, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%s id cannot be the nil UUID", kind)
	}
	return u, nil
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseID("tenant", s)
	return TenantID(u), err
}

func ParseStudentID(s string) (StudentID, error) {
	u, err := parseID("student", s)
	return StudentID(u), err
}

func ParseClassID(s string) (ClassID, error) {
	u, err := parseID("class", s)
	return ClassID(u), err
}

func ParseEnrollmentID(s string) (EnrollmentID, error) {
	u, err := parseID("enrollment", s)
	return EnrollmentID(u), err
}

func ParseInvoiceID(s string) (InvoiceID, error) {
	u, err := parseID("invoice", s)
	return InvoiceID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseID("payment", s)
	return PaymentID(u), err
}

func (id TenantID) String() string     { return uuid.UUID(id).String() }
func (id StudentID) String() string    { return uuid.UUID(id).String() }
func (id ClassID) String() string      { return uuid.UUID(id).String() }
func (id EnrollmentID) String() string { return uuid.UUID(id).String() }
func (id AttendanceID) String() string { return uuid.UUID(id).String() }
func (id InvoiceID) String() string    { return uuid.UUID(id).String() }
func (id PaymentID) String() string    { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id StudentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ClassID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EnrollmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AttendanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InvoiceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func NewTenantID() TenantID         { return TenantID(uuid.New()) }
func NewStudentID() StudentID       { return StudentID(uuid.New()) }
func NewClassID() ClassID           { return ClassID(uuid.New()) }
func NewEnrollmentID() EnrollmentID { return EnrollmentID(uuid.New()) }
func NewAttendanceID() AttendanceID { return AttendanceID(uuid.New()) }
func NewInvoiceID() InvoiceID       { return InvoiceID(uuid.New()) }
func NewPaymentID() PaymentID       { return PaymentID(uuid.New()) }
