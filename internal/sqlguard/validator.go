// Package sqlguard validates and sanitizes model-generated SQL.
//
// Validation is heuristic: statements are matched against danger, read and
// write pattern tables rather than parsed. Every check runs on every
// statement so all violations surface together, and an analysis block is
// always computed whether or not the statement is valid.
//
// Sanitization is a separate, later step applied only to statements that
// passed validation, so errors are always reported against the original text.
package sqlguard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/geomind/agentcore/pkg/models"
)

// DefaultMaxRows is the row cap applied when Options.MaxRows is unset.
const DefaultMaxRows = 10000

// Options configure one validation.
type Options struct {
	// ReadOnly rejects anything that is not provably a read.
	ReadOnly bool `json:"readOnly"`
	// Strict promotes low-severity findings to errors.
	Strict bool `json:"strict"`
	// AllowedTables restricts referenced tables when non-empty.
	AllowedTables []string `json:"allowedTables,omitempty"`
	MaxRows       int      `json:"maxRows,omitempty"`
}

// DefaultOptions are the options used for model-generated statements.
func DefaultOptions() Options {
	return Options{ReadOnly: true, MaxRows: DefaultMaxRows}
}

func (o Options) maxRows() int {
	if o.MaxRows <= 0 {
		return DefaultMaxRows
	}
	return o.MaxRows
}

// Validate classifies stmt and flags unsafe constructs.
func Validate(stmt string, opts Options) models.SQLValidationResult {
	result := models.SQLValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
		Analysis: Analyze(stmt),
	}

	// 1. Danger patterns
	for _, p := range dangerPatterns {
		if !p.Matches(stmt) {
			continue
		}
		msg := fmt.Sprintf("[%s] %s", p.Severity, p.Message)
		switch {
		case p.Severity == SeverityCritical || p.Severity == SeverityHigh:
			result.Errors = append(result.Errors, msg)
			result.Valid = false
		case opts.Strict:
			result.Errors = append(result.Errors, msg+" (strict mode)")
			result.Valid = false
		default:
			result.Warnings = append(result.Warnings, msg)
		}
	}

	// 2. Read-only enforcement
	if opts.ReadOnly && (IsWrite(stmt) || !IsRead(stmt)) {
		result.Errors = append(result.Errors, "[read-only] only SELECT, WITH, EXPLAIN and SHOW statements are allowed")
		result.Valid = false
	}

	// 3. Table allowlist
	if len(opts.AllowedTables) > 0 {
		allowed := make(map[string]bool, len(opts.AllowedTables))
		for _, t := range opts.AllowedTables {
			allowed[strings.ToLower(strings.TrimSpace(t))] = true
		}
		var unauthorized []string
		for _, t := range result.Analysis.Tables {
			if !allowed[t] {
				unauthorized = append(unauthorized, t)
			}
		}
		if len(unauthorized) > 0 {
			result.Errors = append(result.Errors, "[tables] tables not allowed: "+strings.Join(unauthorized, ", "))
			result.Valid = false
		}
	}

	// 4. Row cap and complexity warnings
	if result.Analysis.Type == models.StatementSelect && !result.Analysis.HasLimit {
		limit := opts.maxRows()
		result.Analysis.SuggestedLimit = limit
		result.Warnings = append(result.Warnings, fmt.Sprintf("no LIMIT clause; LIMIT %d will be applied", limit))
	}
	if result.Analysis.Complexity == models.ComplexityHigh {
		result.Warnings = append(result.Warnings, "complex statement; execution may be slow")
	}

	return result
}

// Summary renders a human-readable report of a validation result.
func Summary(v models.SQLValidationResult) string {
	var b strings.Builder
	if v.Valid {
		b.WriteString("Statement accepted\n")
	} else {
		b.WriteString("Statement rejected\n")
	}
	fmt.Fprintf(&b, "Type: %s\n", v.Analysis.Type)
	if len(v.Analysis.Tables) > 0 {
		fmt.Fprintf(&b, "Tables: %s\n", strings.Join(v.Analysis.Tables, ", "))
	}
	fmt.Fprintf(&b, "Complexity: %s (score %d)", v.Analysis.Complexity, v.Analysis.ComplexityScore)
	if len(v.Errors) > 0 {
		b.WriteString("\n\nErrors:")
		for _, e := range v.Errors {
			b.WriteString("\n  " + e)
		}
	}
	if len(v.Warnings) > 0 {
		b.WriteString("\n\nWarnings:")
		for _, w := range v.Warnings {
			b.WriteString("\n  " + w)
		}
	}
	return b.String()
}

// ErrStatementRejected matches any *RejectedError with errors.Is.
var ErrStatementRejected = errors.New("statement rejected")

// RejectedError is returned when a statement fails validation and is
// therefore never executed.
type RejectedError struct {
	Result models.SQLValidationResult
}

func (e *RejectedError) Error() string {
	return "statement rejected: " + strings.Join(e.Result.Errors, "; ")
}

// Is makes errors.Is(err, ErrStatementRejected) hold.
func (e *RejectedError) Is(target error) bool { return target == ErrStatementRejected }
