package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSchemaKey is returned when a transaction type or ownership status is not a
// non-empty snake_case identifier
var ErrInvalidSchemaKey = errors.New("invalid schema key")

// SchemaNotFoundError reports that no schema source exists for a
// (transaction type, ownership status) pair
type SchemaNotFoundError struct {
	TransactionType string
	OwnershipStatus string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("unsupported transaction configuration: no schema for %s", SchemaName(e.TransactionType, e.OwnershipStatus))
}

// SchemaValidationError lists every violation found in a schema document
type SchemaValidationError struct {
	Schema     string
	Violations []string

	// causes holds underlying typed errors (condition syntax errors) so callers can
	// still reach them with errors.As.
	causes []error
}

func (e *SchemaValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("schema %s is invalid: %s", e.Schema, e.Violations[0])
	}
	return fmt.Sprintf("schema %s is invalid: %d violations: %s", e.Schema, len(e.Violations), strings.Join(e.Violations, "; "))
}

// Unwrap exposes the condition syntax errors behind individual violations
func (e *SchemaValidationError) Unwrap() []error {
	return e.causes
}

func (e *SchemaValidationError) addf(format string, args ...any) {
	e.Violations = append(e.Violations, fmt.Sprintf(format, args...))
}

func (e *SchemaValidationError) addCause(prefix string, err error) {
	e.Violations = append(e.Violations, prefix+": "+err.Error())
	e.causes = append(e.causes, err)
}

func (e *SchemaValidationError) hasViolations() bool {
	return len(e.Violations) > 0
}

// ConditionSyntaxError reports a condition that cannot be parsed. Offset is the
// 0-based character (not byte) offset into Expression where parsing failed.
type ConditionSyntaxError struct {
	Expression string
	Offset     int
	Fragment   string
	Message    string
}

func (e *ConditionSyntaxError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("condition %q: %s at offset %d", e.Expression, e.Message, e.Offset)
	}
	return fmt.Sprintf("condition %q: %s at offset %d near %q", e.Expression, e.Message, e.Offset, e.Fragment)
}
