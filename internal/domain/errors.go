package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrBudgetNotFound      = errors.New("budget not found")
	ErrDuplicateBudget     = errors.New("budget already exists for this month and category")
	ErrInvalidReference    = errors.New("referenced entity does not exist")
	ErrMissingMonth        = errors.New("month is required when including actual spending")
	ErrNoFieldsProvided    = errors.New("no fields provided")
	ErrStorage             = errors.New("storage failure")
	ErrInvalidLimitAmount  = NewValidationError("limit_amount", "limit_amount must be a positive integer")
	ErrNegativeLimitAmount = NewValidationError("limit_amount", "limit_amount must not be negative")
	ErrInvalidCategoryID   = NewValidationError("category_id", "category_id must be a positive integer")
	ErrInvalidBudgetID     = NewValidationError("id", "id must be a positive integer")
)

// Pagination bounds for budget listings
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ValidationError reports caller-correctable input problems for a single field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateBudgetError is returned by strict create when (month, category_id) is taken.
type DuplicateBudgetError struct {
	Month      Month
	CategoryID int64
}

func (e *DuplicateBudgetError) Error() string {
	return fmt.Sprintf("budget for category %d in %s already exists", e.CategoryID, e.Month.Key())
}

// Hint tells the caller how to overwrite the existing budget instead.
func (e *DuplicateBudgetError) Hint() string {
	return "use PUT /api/v1/budgets to create or update the budget for this month and category"
}

func (e *DuplicateBudgetError) Is(target error) bool {
	return target == ErrDuplicateBudget
}

// InvalidReferenceError names the referenced entity that does not exist.
type InvalidReferenceError struct {
	Entity string
	ID     int64
}

func (e *InvalidReferenceError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s does not exist", e.Entity)
	}
	return fmt.Sprintf("%s %d does not exist", e.Entity, e.ID)
}

func (e *InvalidReferenceError) Is(target error) bool {
	return target == ErrInvalidReference
}

// StorageError wraps an unexpected failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err as a StorageError for op.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
