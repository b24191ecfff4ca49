package handler

import (
	"strings"

	id "registra/pkg/domain"
	dErrors "registra/pkg/domain-errors"
)

// CreateRequest is the HTTP request body for POST /classes.
type CreateRequest struct {
	Name      string `json:"name"`
	Term      string `json:"term"`
	Capacity  int    `json:"capacity"`
	TeacherID string `json:"teacher_id"`

	// Parsed values (populated by Validate)
	parsedTerm id.Term
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > 64 {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 64 characters")
	}
	if r.Capacity <= 0 {
		return dErrors.New(dErrors.CodeValidation, "capacity must be positive")
	}

	term, err := id.ParseTerm(r.Term)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "term is required")
	}
	r.parsedTerm = term
	return nil
}

// ParsedTerm returns the validated term.
func (r *CreateRequest) ParsedTerm() id.Term {
	return r.parsedTerm
}
