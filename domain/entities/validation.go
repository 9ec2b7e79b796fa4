package entities

import (
	"fmt"
	"strings"
)

// HeaderProblem is one Header field that broke a validation rule.
type HeaderProblem struct {
	Field string
	Rule  string
	Value any
}

// HeaderReport lists every problem found in a Header.
type HeaderReport struct {
	Problems []HeaderProblem
}

// Valid reports whether no problem was found.
func (r *HeaderReport) Valid() bool { return len(r.Problems) == 0 }

// Err summarizes the problems, or returns nil for a valid header.
func (r *HeaderReport) Err() error {
	if r.Valid() {
		return nil
	}
	parts := make([]string, len(r.Problems))
	for i, p := range r.Problems {
		parts[i] = fmt.Sprintf("%s fails %q (value %v)", p.Field, p.Rule, p.Value)
	}
	return fmt.Errorf("invalid header: %s", strings.Join(parts, "; "))
}
