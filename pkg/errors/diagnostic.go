package errors

import (
	"errors"
	"fmt"
)

// Position is a zero-based line/column pair inside a source file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Location identifies a span of source text for diagnostics and symbol
// tracking. FilePath is the path of the file the span belongs to; Start and
// End delimit the span inclusively.
type Location struct {
	FilePath string   `json:"file_path"`
	Start    Position `json:"start"`
	End      Position `json:"end"`
}

// String formats the location as "path:line:column".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Start.Line+1, l.Start.Column+1)
}

// DiagnosticKind classifies a diagnostic for downstream reporters.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagError   DiagnosticKind = "error"
	DiagWarning DiagnosticKind = "warning"
	DiagInfo    DiagnosticKind = "info"
)

// Diagnostic is the structured failure report attached to errors surfaced by
// graph and pipeline operations. Reporters format diagnostics for display;
// the engine never prints them directly.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	Loc     *Location      `json:"loc,omitempty"`
}

// Diagnostics extracts diagnostics attached to an error chain.
// Errors without attached diagnostics yield a single error-kind diagnostic
// carrying the error message, so reporters always have something to show.
func Diagnostics(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Diags
	}
	return []Diagnostic{{Kind: DiagError, Message: UserMessage(err)}}
}

// DiagnosticError carries structured diagnostics alongside a wrapped error.
type DiagnosticError struct {
	Err   error
	Diags []Diagnostic
}

// Error implements the error interface.
func (e *DiagnosticError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *DiagnosticError) Unwrap() error { return e.Err }

// WithDiagnostics attaches diagnostics to an error.
// Returns nil if err is nil.
func WithDiagnostics(err error, diags ...Diagnostic) error {
	if err == nil {
		return nil
	}
	return &DiagnosticError{Err: err, Diags: diags}
}
