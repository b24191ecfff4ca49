package handler

import (
	"strings"

	dErrors "registra/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /students.
type RegisterRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AdmissionNo string `json:"admission_no"`
}

// Validate validates and normalizes the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.AdmissionNo = strings.TrimSpace(r.AdmissionNo)

	if r.FirstName == "" {
		return dErrors.New(dErrors.CodeValidation, "first_name is required")
	}
	if r.LastName == "" {
		return dErrors.New(dErrors.CodeValidation, "last_name is required")
	}
	if r.AdmissionNo == "" {
		return dErrors.New(dErrors.CodeValidation, "admission_no is required")
	}
	if len(r.AdmissionNo) > 32 {
		return dErrors.New(dErrors.CodeValidation, "admission_no must be at most 32 characters")
	}
	return nil
}
