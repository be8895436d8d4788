package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetNotFound signals a dataset missing for the given tenant.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrRecordNotFound signals a record missing for the given tenant and dataset.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDatasetNameExists signals a (user_id, name) collision.
	ErrDatasetNameExists = errors.New("dataset name already exists")

	// ErrInvalidDataset signals malformed dataset metadata (name, description).
	ErrInvalidDataset = errors.New("invalid dataset")
	// ErrInvalidDatasetSchema signals a malformed schema.
	ErrInvalidDatasetSchema = errors.New("invalid dataset schema")
	// ErrInvalidSchemaUpdate signals an unsafe or inconsistent schema change.
	ErrInvalidSchemaUpdate = errors.New("invalid schema update")
	// ErrInvalidRecordData signals record data that does not satisfy the schema.
	ErrInvalidRecordData = errors.New("invalid record data")
	// ErrInvalidQuery signals a query that does not resolve against the schema.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrTypeConversion signals a stored value that cannot be migrated to a new field type.
	ErrTypeConversion = errors.New("type conversion failed")

	// ErrDatabase signals an unexpected storage failure.
	ErrDatabase = errors.New("database error")
	// ErrMissingTenant signals an operation issued without a user id.
	ErrMissingTenant = errors.New("user id is required")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

var validationErrors = []error{
	ErrInvalidDataset,
	ErrInvalidDatasetSchema,
	ErrInvalidSchemaUpdate,
	ErrInvalidRecordData,
	ErrInvalidQuery,
	ErrTypeConversion,
	ErrMissingTenant,
}

// IsValidation reports whether err belongs to the caller-input validation family.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// FieldValueError reports a value that failed coercion for a single field.
type FieldValueError struct {
	Field string
	Err   error
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("invalid value for field '%s': %v", e.Field, e.Err)
}

// Unwrap exposes both the record-data sentinel and the validator cause.
func (e *FieldValueError) Unwrap() []error { return []error{ErrInvalidRecordData, e.Err} }

// NewFieldValueError wraps a validator failure with the field it belongs to.
func NewFieldValueError(field string, err error) error {
	return &FieldValueError{Field: field, Err: err}
}

// TypeConversionError reports the record that blocked a field type migration.
type TypeConversionError struct {
	RecordID string
	Field    string
	From     string
	To       string
	Err      error
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("failed to convert field '%s' from %s to %s in record %s: %v",
		e.Field, e.From, e.To, e.RecordID, e.Err)
}

func (e *TypeConversionError) Unwrap() []error { return []error{ErrTypeConversion, e.Err} }

// DatabaseError wraps an unexpected storage failure with the operation that raised it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDatabase.Error(), e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() []error { return []error{ErrDatabase, e.Err} }

// NewDatabaseError wraps err unless it already carries a domain meaning.
// Known validation and not-found errors pass through untouched.
func NewDatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsValidation(err) ||
		errors.Is(err, ErrDatasetNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrDatasetNameExists) ||
		errors.Is(err, ErrDatabase) ||
		errors.Is(err, ErrEmbeddingProviderError) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}
