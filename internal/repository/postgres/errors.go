package postgres

import (
	"errors"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Constraint names from migrations/000002_create_budgets.up.sql
const (
	constraintBudgetMonthCategory = "budgets_month_category_id_key"
	constraintBudgetCategoryFK    = "budgets_category_id_fkey"
	constraintBudgetMonthFirstDay = "budgets_month_first_day_check"
	constraintBudgetLimitAmount   = "budgets_limit_amount_check"
)

// translateBudgetError maps a storage failure for a budget operation onto the domain taxonomy.
// budget supplies the key for duplicate and reference errors and may be nil.
func translateBudgetError(op string, err error, budget *domain.Budget) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrBudgetNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintBudgetMonthCategory:
			dup := &domain.DuplicateBudgetError{}
			if budget != nil {
				dup.Month = budget.Month
				dup.CategoryID = budget.CategoryID
			}
			return dup
		case pgErr.Code == pgForeignKeyViolation && pgErr.ConstraintName == constraintBudgetCategoryFK:
			ref := &domain.InvalidReferenceError{Entity: "category"}
			if budget != nil {
				ref.ID = budget.CategoryID
			}
			return ref
		case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintBudgetMonthFirstDay:
			return domain.NewValidationError("month", "month must be the first day of a month")
		case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == constraintBudgetLimitAmount:
			return domain.ErrNegativeLimitAmount
		}
	}

	return domain.NewStorageError(op, err)
}

// isLostRace reports whether err is a transient conflict with a concurrent writer
func isLostRace(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}
