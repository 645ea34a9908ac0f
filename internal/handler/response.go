package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Hint     string            `json:"hint,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation       = "https://fortuna.app/errors/validation"
	ErrorTypeNotFound         = "https://fortuna.app/errors/not-found"
	ErrorTypeConflict         = "https://fortuna.app/errors/conflict"
	ErrorTypeInvalidReference = "https://fortuna.app/errors/invalid-reference"
	ErrorTypeInternal         = "https://fortuna.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail, hint string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Hint:     hint,
	})
}

// NewInvalidReferenceError creates a 422 response for a reference to a missing entity
func NewInvalidReferenceError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnprocessableEntity, ProblemDetails{
		Type:     ErrorTypeInvalidReference,
		Title:    "Invalid Reference",
		Status:   http.StatusUnprocessableEntity,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// respondError maps a budget service error to its problem details response.
// Storage failures are logged and reported without internal detail.
func respondError(c echo.Context, err error, action string) error {
	var validationErr *domain.ValidationError
	var duplicateErr *domain.DuplicateBudgetError
	var referenceErr *domain.InvalidReferenceError

	switch {
	case errors.As(err, &validationErr):
		return NewValidationError(c, "Invalid request", []ValidationError{
			{Field: validationErr.Field, Message: validationErr.Message},
		})
	case errors.Is(err, domain.ErrNoFieldsProvided):
		return NewValidationError(c, "No fields provided", nil)
	case errors.Is(err, domain.ErrMissingMonth):
		return NewValidationError(c, "Month is required when include_actual is set", []ValidationError{
			{Field: "month", Message: "month is required"},
		})
	case errors.Is(err, domain.ErrBudgetNotFound):
		return NewNotFoundError(c, "Budget not found")
	case errors.As(err, &duplicateErr):
		return NewConflictError(c, duplicateErr.Error(), duplicateErr.Hint())
	case errors.As(err, &referenceErr):
		return NewInvalidReferenceError(c, referenceErr.Error())
	default:
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Failed to " + action)
		return NewInternalError(c, "Failed to "+action)
	}
}
