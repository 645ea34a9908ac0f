package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/dafibh/fortuna/fortuna-budget/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// BudgetHandler handles budget HTTP requests
type BudgetHandler struct {
	budgetService *service.BudgetService
}

// NewBudgetHandler creates a new BudgetHandler
func NewBudgetHandler(budgetService *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// BudgetRequest is the body for create and upsert.
// limit_amount accepts a JSON number or numeric string and is rounded to an integer.
type BudgetRequest struct {
	Month       string           `json:"month"`
	CategoryID  int64            `json:"category_id"`
	LimitAmount *decimal.Decimal `json:"limit_amount"`
}

// UpdateBudgetRequest is the body for partial updates
type UpdateBudgetRequest struct {
	LimitAmount *decimal.Decimal `json:"limit_amount"`
}

// BudgetListResponse is a page of budgets with the total matching the filter
type BudgetListResponse struct {
	Data  interface{} `json:"data"`
	Count int64       `json:"count"`
}

// CreateBudget handles POST /api/v1/budgets
func (h *BudgetHandler) CreateBudget(c echo.Context) error {
	input, err := bindBudgetInput(c)
	if err != nil {
		return err
	}
	if input == nil {
		return nil
	}

	budget, err := h.budgetService.CreateBudget(c.Request().Context(), *input)
	if err != nil {
		return respondError(c, err, "create budget")
	}
	return c.JSON(http.StatusCreated, budget)
}

// UpsertBudget handles PUT /api/v1/budgets
func (h *BudgetHandler) UpsertBudget(c echo.Context) error {
	input, err := bindBudgetInput(c)
	if err != nil {
		return err
	}
	if input == nil {
		return nil
	}

	budget, err := h.budgetService.UpsertBudget(c.Request().Context(), *input)
	if err != nil {
		return respondError(c, err, "save budget")
	}
	return c.JSON(http.StatusOK, budget)
}

// ListBudgets handles GET /api/v1/budgets
func (h *BudgetHandler) ListBudgets(c echo.Context) error {
	filter, problems := parseBudgetFilter(c)
	if len(problems) > 0 {
		return NewValidationError(c, "Invalid query parameters", problems)
	}

	includeActual, err := parseBool(c.QueryParam("include_actual"))
	if err != nil {
		return NewValidationError(c, "Invalid query parameters", []ValidationError{
			{Field: "include_actual", Message: "Must be true or false"},
		})
	}

	ctx := c.Request().Context()
	if includeActual {
		list, err := h.budgetService.ListBudgetsWithActual(ctx, filter)
		if err != nil {
			return respondError(c, err, "list budgets")
		}
		return c.JSON(http.StatusOK, BudgetListResponse{Data: list.Budgets, Count: list.Count})
	}

	list, err := h.budgetService.ListBudgets(ctx, filter)
	if err != nil {
		return respondError(c, err, "list budgets")
	}
	return c.JSON(http.StatusOK, BudgetListResponse{Data: list.Budgets, Count: list.Count})
}

// GetBudget handles GET /api/v1/budgets/:id
func (h *BudgetHandler) GetBudget(c echo.Context) error {
	id, err := parseBudgetID(c)
	if err != nil {
		return NewValidationError(c, "Invalid budget ID", nil)
	}

	includeActual, err := parseBool(c.QueryParam("include_actual"))
	if err != nil {
		return NewValidationError(c, "Invalid query parameters", []ValidationError{
			{Field: "include_actual", Message: "Must be true or false"},
		})
	}

	ctx := c.Request().Context()
	if includeActual {
		budget, err := h.budgetService.GetBudgetWithActual(ctx, id)
		if err != nil {
			return respondError(c, err, "get budget")
		}
		return c.JSON(http.StatusOK, budget)
	}

	budget, err := h.budgetService.GetBudget(ctx, id)
	if err != nil {
		return respondError(c, err, "get budget")
	}
	return c.JSON(http.StatusOK, budget)
}

// UpdateBudget handles PATCH /api/v1/budgets/:id
func (h *BudgetHandler) UpdateBudget(c echo.Context) error {
	id, err := parseBudgetID(c)
	if err != nil {
		return NewValidationError(c, "Invalid budget ID", nil)
	}

	var req UpdateBudgetRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	var update domain.BudgetUpdate
	if req.LimitAmount != nil {
		limit, ok := roundAmount(*req.LimitAmount)
		if !ok {
			return NewValidationError(c, "Invalid request body", []ValidationError{
				{Field: "limit_amount", Message: "Must be a whole amount in the smallest currency unit"},
			})
		}
		update.LimitAmount = &limit
	}

	budget, err := h.budgetService.UpdateBudget(c.Request().Context(), id, update)
	if err != nil {
		return respondError(c, err, "update budget")
	}
	return c.JSON(http.StatusOK, budget)
}

// DeleteBudget handles DELETE /api/v1/budgets/:id
func (h *BudgetHandler) DeleteBudget(c echo.Context) error {
	id, err := parseBudgetID(c)
	if err != nil {
		return NewValidationError(c, "Invalid budget ID", nil)
	}

	deleted, err := h.budgetService.DeleteBudget(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err, "delete budget")
	}
	if !deleted {
		return NewNotFoundError(c, "Budget not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// bindBudgetInput decodes and pre-validates a create/upsert body. A nil input with a nil
// error means a problem response was already written.
func bindBudgetInput(c echo.Context) (*service.BudgetInput, error) {
	var req BudgetRequest
	if err := c.Bind(&req); err != nil {
		return nil, NewValidationError(c, "Invalid request body", nil)
	}

	var problems []ValidationError
	month, err := domain.ParseMonth(req.Month)
	if err != nil {
		problems = append(problems, fieldProblem(err, "month"))
	}
	if req.CategoryID <= 0 {
		problems = append(problems, ValidationError{Field: "category_id", Message: "Must be a positive integer"})
	}

	var limit int64
	if req.LimitAmount == nil {
		problems = append(problems, ValidationError{Field: "limit_amount", Message: "Required"})
	} else {
		var ok bool
		if limit, ok = roundAmount(*req.LimitAmount); !ok || limit <= 0 {
			problems = append(problems, ValidationError{Field: "limit_amount", Message: "Must be a positive whole amount in the smallest currency unit"})
		}
	}

	if len(problems) > 0 {
		return nil, NewValidationError(c, "Invalid request body", problems)
	}

	return &service.BudgetInput{
		Month:       month,
		CategoryID:  req.CategoryID,
		LimitAmount: limit,
	}, nil
}

func parseBudgetFilter(c echo.Context) (domain.BudgetFilter, []ValidationError) {
	var filter domain.BudgetFilter
	var problems []ValidationError

	if raw := c.QueryParam("month"); raw != "" {
		month, err := domain.ParseMonth(raw)
		if err != nil {
			problems = append(problems, fieldProblem(err, "month"))
		} else {
			filter.Month = &month
		}
	}

	if raw := c.QueryParam("category_id"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || categoryID <= 0 {
			problems = append(problems, ValidationError{Field: "category_id", Message: "Must be a positive integer"})
		} else {
			filter.CategoryID = &categoryID
		}
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			problems = append(problems, ValidationError{Field: "limit", Message: "Must be a positive integer"})
		} else {
			filter.Limit = limit
		}
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			problems = append(problems, ValidationError{Field: "offset", Message: "Must be a non-negative integer"})
		} else {
			filter.Offset = offset
		}
	}

	return filter, problems
}

func parseBudgetID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidBudgetID
	}
	return id, nil
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// roundAmount rounds half away from zero to a whole amount. It reports false when the
// result does not fit in an int64.
func roundAmount(amount decimal.Decimal) (int64, bool) {
	rounded := amount.Round(0)
	if !rounded.BigInt().IsInt64() {
		return 0, false
	}
	return rounded.IntPart(), true
}

func fieldProblem(err error, field string) ValidationError {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ValidationError{Field: ve.Field, Message: ve.Message}
	}
	return ValidationError{Field: field, Message: err.Error()}
}
