package snapshot

import (
	"errors"
	"fmt"
)

// GuardError represents errors raised by the backup/restore subsystem.
type GuardError struct {
	Type    GuardErrorType         `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *GuardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *GuardError) Unwrap() error {
	return e.Cause
}

// GuardErrorType represents the failure taxonomy of the subsystem
type GuardErrorType string

const (
	// ErrTypeValidationFailed signals source data that failed integrity
	// rules; the backup is refused until an operator remediates the data.
	ErrTypeValidationFailed GuardErrorType = "VALIDATION_FAILED"
	// ErrTypeArtifactCorrupt signals a snapshot whose embedded fingerprints
	// or checksum do not match its own content. Never used as a restore
	// source.
	ErrTypeArtifactCorrupt GuardErrorType = "ARTIFACT_CORRUPT"
	// ErrTypeStorageFailure signals a durable read/write error. Surfaced,
	// never silently retried.
	ErrTypeStorageFailure GuardErrorType = "STORAGE_FAILURE"
	// ErrTypeUnauthorized signals a failed confirmation token or privilege
	// check. Always fails closed.
	ErrTypeUnauthorized GuardErrorType = "UNAUTHORIZED"
	// ErrTypeLoadTransactionFailed signals a bulk reload that failed partway;
	// the transaction boundary guarantees live data is untouched.
	ErrTypeLoadTransactionFailed GuardErrorType = "LOAD_TRANSACTION_FAILED"
	// ErrTypePostRestoreMismatch signals committed data that does not match
	// the target snapshot's fingerprints; triggers automatic reversion.
	ErrTypePostRestoreMismatch GuardErrorType = "POST_RESTORE_MISMATCH"
	ErrTypeNotFound            GuardErrorType = "NOT_FOUND"
	ErrTypeConflict            GuardErrorType = "CONFLICT"
	ErrTypeDatabase            GuardErrorType = "DATABASE_ERROR"
	ErrTypeConfiguration       GuardErrorType = "CONFIGURATION_ERROR"
	ErrTypeCompression         GuardErrorType = "COMPRESSION_ERROR"
	ErrTypeEncryption          GuardErrorType = "ENCRYPTION_ERROR"
)

// NewGuardError creates a new GuardError
func NewGuardError(errorType GuardErrorType, message string, cause error) *GuardError {
	return &GuardError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *GuardError) WithContext(key string, value interface{}) *GuardError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Common error constructors
func NewValidationFailedError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeValidationFailed, message, cause)
}

func NewArtifactCorruptError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeArtifactCorrupt, message, cause)
}

func NewStorageError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeStorageFailure, message, cause)
}

func NewUnauthorizedError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeUnauthorized, message, cause)
}

func NewLoadTransactionError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeLoadTransactionFailed, message, cause)
}

func NewPostRestoreMismatchError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypePostRestoreMismatch, message, cause)
}

func NewNotFoundError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeConflict, message, cause)
}

func NewDatabaseError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeDatabase, message, cause)
}

func NewConfigurationError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeConfiguration, message, cause)
}

func NewCompressionError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *GuardError {
	return NewGuardError(ErrTypeEncryption, message, cause)
}

// ErrorType extracts the GuardErrorType from an error chain, or empty string
// when the chain contains no GuardError.
func ErrorType(err error) GuardErrorType {
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return guardErr.Type
	}
	return ""
}

// IsRetryable determines if an error is retryable by the caller
func IsRetryable(err error) bool {
	switch ErrorType(err) {
	case ErrTypeStorageFailure, ErrTypeDatabase:
		return true
	default:
		return false
	}
}

// IsPermanent determines if an error requires human remediation before retry
func IsPermanent(err error) bool {
	switch ErrorType(err) {
	case ErrTypeValidationFailed, ErrTypeArtifactCorrupt,
		ErrTypeUnauthorized, ErrTypeConfiguration:
		return true
	default:
		return false
	}
}

// ValidationError represents a single field-level validation failure
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of field-level validation failures
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}
