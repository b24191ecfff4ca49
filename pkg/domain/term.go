package domain

import "fmt"

// Term is the academic period label a class and its enrollments belong to
// ("2025" or "2025-S1" style). It is a domain primitive that enforces
// validity at parse time.
type Term string

const maxTermLength = 32

// ParseTerm validates and returns a Term.
func ParseTerm(s string) (Term, error) {
	if s == "" {
		return "", fmt.Errorf("term is required")
	}
	if len(s) > maxTermLength {
		return "", fmt.Errorf("term must be %d characters or less", maxTermLength)
	}
	return Term(s), nil
}

// String returns the string representation of the term.
func (t Term) String() string {
	return string(t)
}

// IsNil returns true if the term is empty.
func (t Term) IsNil() bool {
	return t == ""
}
