package repository

import (
	"errors"
	"fmt"

	"github.com/ahmadzakiakmal/dossierflow/workflow"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes as constants
const (
	// Class 23 - Integrity Constraint Violation
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrCheckViolation      = "23514" // check_violation
	PgErrNotNullViolation    = "23502" // not_null_violation

	// Class 40 - Transaction Rollback
	PgErrSerializationFailure = "40001" // serialization_failure
	PgErrDeadlockDetected     = "40P01" // deadlock_detected
)

// Repository error codes. Rejections from the workflow package keep their own code.
const (
	ErrCodeNotFound       = "ENTITY_NOT_FOUND"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeCommit         = "COMMIT_FAILED"
	ErrCodeDuplicate      = "DUPLICATE"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeDeliveryFailed = "DELIVERY_FAILED"
	ErrCodeConflict       = "CONFLICT"
)

// RepositoryError represent an error in the repository layer
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func notFound(entity, id string) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s does not exist", entity),
		Detail:  fmt.Sprintf("%s with id %s does not exist", entity, id),
	}
}

func invalidInput(format string, args ...any) *RepositoryError {
	return &RepositoryError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func invalidState(format string, args ...any) *RepositoryError {
	return &RepositoryError{Code: workflow.CodeInvalidState, Message: fmt.Sprintf(format, args...)}
}

// toRepositoryError maps workflow rejections, gorm and PostgreSQL errors
func toRepositoryError(err error, entity string) *RepositoryError {
	if err == nil {
		return nil
	}
	var repoErr *RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr
	}
	if rejected, ok := workflow.AsRejected(err); ok {
		return &RepositoryError{Code: rejected.Code, Message: rejected.Reason}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RepositoryError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("%s does not exist", entity),
			Detail:  err.Error(),
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &RepositoryError{
			Code:    ErrCodeDuplicate,
			Message: fmt.Sprintf("%s already exists", entity),
			Detail:  err.Error(),
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation:
			return &RepositoryError{Code: ErrCodeDuplicate, Message: fmt.Sprintf("%s already exists", entity), Detail: pgErr.Detail}
		case PgErrForeignKeyViolation, PgErrCheckViolation, PgErrNotNullViolation:
			return &RepositoryError{Code: workflow.CodeConstraint, Message: pgErr.Message, Detail: pgErr.Detail}
		case PgErrSerializationFailure, PgErrDeadlockDetected:
			return &RepositoryError{Code: ErrCodeConflict, Message: "Concurrent update, try again", Detail: pgErr.Message}
		}
		return &RepositoryError{Code: pgErr.Code, Message: pgErr.Message, Detail: pgErr.Detail}
	}
	return &RepositoryError{
		Code:    ErrCodeDatabase,
		Message: "Database error occurred",
		Detail:  err.Error(),
	}
}
