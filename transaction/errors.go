package transaction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a transaction does not exist for the tenant
	ErrNotFound = errors.New("transaction not found")

	// ErrUnsupportedConfiguration is returned when no schema exists for a
	// transaction type and ownership status
	ErrUnsupportedConfiguration = errors.New("unsupported transaction configuration")

	// ErrInvalidParams is returned for malformed create requests
	ErrInvalidParams = errors.New("invalid transaction parameters")
)

// IncompleteError blocks package generation while required answers are missing
type IncompleteError struct {
	TransactionID string
	Missing       []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("transaction %s: questionnaire incomplete, missing %s", e.TransactionID, strings.Join(e.Missing, ", "))
}
