package handler

import (
	"strings"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// EnrollRequest is the HTTP request body for POST /enrollments. Term is
// optional; when omitted the class's term is used.
type EnrollRequest struct {
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Term      string `json:"term,omitempty"`

	// Parsed values (populated by Validate)
	parsedStudentID id.StudentID
	parsedClassID   id.ClassID
	parsedTerm      id.Term
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *EnrollRequest) Validate() error {
	studentID, err := id.ParseStudentID(r.StudentID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "student_id is required")
	}
	r.parsedStudentID = studentID

	classID, err := id.ParseClassID(r.ClassID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "class_id is required")
	}
	r.parsedClassID = classID

	r.Term = strings.TrimSpace(r.Term)
	if r.Term != "" {
		term, err := id.ParseTerm(r.Term)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "term is invalid")
		}
		r.parsedTerm = term
	}
	return nil
}

// ParsedStudentID returns the validated student id.
func (r *EnrollRequest) ParsedStudentID() id.StudentID {
	return r.parsedStudentID
}

// ParsedClassID returns the validated class id.
func (r *EnrollRequest) ParsedClassID() id.ClassID {
	return r.parsedClassID
}

// ParsedTerm returns the validated term; zero when omitted.
func (r *EnrollRequest) ParsedTerm() id.Term {
	return r.parsedTerm
}

// TransferRequest is the HTTP request body for
// POST /enrollments/{enrollmentID}/transfer.
type TransferRequest struct {
	TargetClassID string `json:"target_class_id"`
	Reason        string `json:"reason,omitempty"`

	parsedTargetClassID id.ClassID
}

// Validate validates and parses the request.
func (r *TransferRequest) Validate() error {
	targetClassID, err := id.ParseClassID(r.TargetClassID)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "target_class_id is required")
	}
	r.parsedTargetClassID = targetClassID
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}

// ParsedTargetClassID returns the validated target class id.
func (r *TransferRequest) ParsedTargetClassID() id.ClassID {
	return r.parsedTargetClassID
}

// TransitionRequest is the HTTP request body for the complete, withdraw, and
// suspend endpoints. FinalGrade only applies to completion.
type TransitionRequest struct {
	Reason     string `json:"reason,omitempty"`
	FinalGrade string `json:"final_grade,omitempty"`
}

// Validate normalizes the request.
func (r *TransitionRequest) Validate() error {
	r.Reason = strings.TrimSpace(r.Reason)
	r.FinalGrade = strings.TrimSpace(r.FinalGrade)
	if len(r.Reason) > 256 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 256 characters")
	}
	if len(r.FinalGrade) > 16 {
		return dErrors.New(dErrors.CodeValidation, "final_grade must be at most 16 characters")
	}
	return nil
}
