// Package diagnostics carries the errors and warnings every compilation
// stage accumulates instead of throwing (spec.md §7: "all user-visible
// diagnostics are accumulated, not thrown").
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/yarn-slinger/compiler/ast"
)

// Severity distinguishes a diagnostic that fails the compilation from one
// that merely rides along with a successful result.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String renders the severity the way it appears in a formatted
// diagnostic ("error"/"warning"), matching spec.md §6.3's display format.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic describes one problem found during compilation: a syntax-
// adjacent rejection, a declaration conflict, a type error, or (rarely) an
// internal-compiler-error assertion.
type Diagnostic struct {
	File     string
	Range    ast.Range
	Severity Severity
	Message  string

	// Context is a free-form source snippet for display purposes; it may
	// be empty when no snippet was available at the point of creation.
	Context string
}

// New builds an error-severity diagnostic at r.
func New(file string, r ast.Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{File: file, Range: r, Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

// NewWarning builds a warning-severity diagnostic at r.
func NewWarning(file string, r ast.Range, format string, args ...interface{}) Diagnostic {
	return Diagnostic{File: file, Range: r, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// String renders one line in the stable "<file>:<line>:<col>: <severity>:
// <message>" format used both standalone and inside CompilationError.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Range.StartLine, d.Range.StartColumn, d.Severity, d.Message)
}

// Partition splits a mixed diagnostic list into (errors, warnings),
// preserving relative order within each group. This is the classification
// step spec.md §2 describes as running after all stages have contributed
// to the accumulated list.
func Partition(diags []Diagnostic) (errs, warnings []Diagnostic) {
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		} else {
			warnings = append(warnings, d)
		}
	}
	return errs, warnings
}

// HasErrors reports whether diags contains at least one error-severity
// entry — the condition spec.md §7 defines as compilation failure.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CompilationError wraps the error-severity diagnostics of a failed
// compilation (spec.md §6.3). Every entry has Severity == SeverityError.
type CompilationError struct {
	Diagnostics []Diagnostic
}

// Error renders one diagnostic per line.
func (e *CompilationError) Error() string {
	var b strings.Builder
	for i, d := range e.Diagnostics {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(d.String())
	}
	return b.String()
}
