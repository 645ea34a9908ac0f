package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetStatus summarises how much of a budget has been used
type BudgetStatus string

const (
	BudgetStatusOnTrack BudgetStatus = "on_track"
	BudgetStatusWarning BudgetStatus = "warning"
	BudgetStatusOver    BudgetStatus = "over"
)

// WarningThreshold returns the used ratio (0.8) at which a budget moves to BudgetStatusWarning
func WarningThreshold() decimal.Decimal {
	return decimal.New(8, -1)
}

// Budget is the spending limit for one category in one month.
// LimitAmount is in the smallest currency unit.
type Budget struct {
	ID          int64     `json:"id"`
	Month       Month     `json:"month"`
	CategoryID  int64     `json:"category_id"`
	LimitAmount int64     `json:"limit_amount"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BudgetWithActual is a Budget merged with what the ledger reports as spent
type BudgetWithActual struct {
	Budget
	ActualSpent int64 `json:"actual_spent"`
	Remaining   int64 `json:"remaining"`
	// PercentageUsed is ActualSpent / LimitAmount; nil when the limit is zero.
	PercentageUsed *decimal.Decimal `json:"percentage_used"`
	Status         BudgetStatus     `json:"status"`
}

// NewBudgetWithActual merges a budget with its spent amount
func NewBudgetWithActual(budget Budget, actualSpent int64) *BudgetWithActual {
	result := &BudgetWithActual{
		Budget:      budget,
		ActualSpent: actualSpent,
		Remaining:   budget.LimitAmount - actualSpent,
	}

	if budget.LimitAmount == 0 {
		result.Status = BudgetStatusOnTrack
		if actualSpent > 0 {
			result.Status = BudgetStatusOver
		}
		return result
	}

	used := decimal.NewFromInt(actualSpent).DivRound(decimal.NewFromInt(budget.LimitAmount), 4)
	result.PercentageUsed = &used

	switch {
	case actualSpent > budget.LimitAmount:
		result.Status = BudgetStatusOver
	case used.GreaterThanOrEqual(WarningThreshold()):
		result.Status = BudgetStatusWarning
	default:
		result.Status = BudgetStatusOnTrack
	}
	return result
}

// BudgetFilter narrows budget listings. Nil fields do not filter.
// Limit and Offset page the listing only; counts ignore them.
type BudgetFilter struct {
	Month      *Month
	CategoryID *int64
	Limit      int
	Offset     int
}

// BudgetUpdate holds the mutable fields of a budget. Nil fields are left unchanged.
type BudgetUpdate struct {
	LimitAmount *int64
}

// IsEmpty reports whether no field was provided
func (u BudgetUpdate) IsEmpty() bool {
	return u.LimitAmount == nil
}

// BudgetRepository persists budgets. (Month, CategoryID) is unique.
type BudgetRepository interface {
	// Create inserts a budget, failing with *DuplicateBudgetError on collision.
	Create(ctx context.Context, budget *Budget) (*Budget, error)
	// Upsert inserts or replaces the limit of the budget for (Month, CategoryID) atomically.
	// created reports whether a new row was inserted.
	Upsert(ctx context.Context, budget *Budget) (result *Budget, created bool, err error)
	GetByID(ctx context.Context, id int64) (*Budget, error)
	List(ctx context.Context, filter BudgetFilter) ([]*Budget, error)
	Count(ctx context.Context, filter BudgetFilter) (int64, error)
	UpdateLimit(ctx context.Context, id int64, limitAmount int64) (*Budget, error)
	// Delete removes a budget and returns it, or ErrBudgetNotFound.
	Delete(ctx context.Context, id int64) (*Budget, error)
}

// LedgerReader aggregates the transaction ledger without mutating it
type LedgerReader interface {
	// SumSpent returns the sum of absolute expense amounts for categoryID within month.
	SumSpent(ctx context.Context, month Month, categoryID int64) (int64, error)
}
