// Package workflow holds the pipeline rules: guards, state transitions and
// duration arithmetic. Functions here mutate the records they are given and
// never touch the store; the repository wraps each call in a transaction.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Rejection codes
const (
	CodeInvalidState = "INVALID_STATE"
	CodeMissingField = "MISSING_FIELD"
	CodeCapacity     = "CAPACITY_EXCEEDED"
	CodeConstraint   = "CONSTRAINT_VIOLATION"
)

// RejectedError is returned when a guard refuses an operation.
// Reason is meant to be shown to the operator as is.
type RejectedError struct {
	Code   string
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

func reject(code, format string, args ...any) error {
	return &RejectedError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

func missing(what string, fields []string) error {
	return reject(CodeMissingField, "%s: missing %s", what, strings.Join(fields, ", "))
}

// AsRejected unwraps a RejectedError
func AsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
