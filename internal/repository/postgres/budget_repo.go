package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// maxUpsertAttempts bounds retries of an upsert that lost a race with a concurrent writer
const maxUpsertAttempts = 3

const budgetColumns = "id, month, category_id, limit_amount, created_at, updated_at"

// BudgetRepository implements domain.BudgetRepository using PostgreSQL
type BudgetRepository struct {
	db           querier
	queryTimeout time.Duration
}

// NewBudgetRepository creates a new BudgetRepository
func NewBudgetRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *BudgetRepository {
	return &BudgetRepository{
		db:           pool,
		queryTimeout: queryTimeout,
	}
}

// Create inserts a new budget. The unique (month, category_id) constraint rejects collisions.
func (r *BudgetRepository) Create(ctx context.Context, budget *domain.Budget) (*domain.Budget, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		INSERT INTO budgets (month, category_id, limit_amount)
		VALUES ($1, $2, $3)
		RETURNING `+budgetColumns,
		budget.Month.Time(), budget.CategoryID, budget.LimitAmount,
	)

	created, err := scanBudget(row)
	if err != nil {
		return nil, translateBudgetError("budget.create", err, budget)
	}
	return created, nil
}

// Upsert creates the budget for (month, category_id) or replaces its limit in one statement.
// ON CONFLICT arbitrates concurrent writers on the unique constraint, so two callers racing on
// the same key never both insert.
func (r *BudgetRepository) Upsert(ctx context.Context, budget *domain.Budget) (*domain.Budget, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		result, created, err := r.upsertOnce(ctx, budget)
		if err == nil {
			return result, created, nil
		}
		if !isLostRace(err) || ctx.Err() != nil {
			return nil, false, translateBudgetError("budget.upsert", err, budget)
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("month", budget.Month.String()).
			Int64("category_id", budget.CategoryID).
			Msg("Budget upsert lost a race, retrying")
	}
	return nil, false, translateBudgetError("budget.upsert", lastErr, budget)
}

func (r *BudgetRepository) upsertOnce(ctx context.Context, budget *domain.Budget) (*domain.Budget, bool, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		INSERT INTO budgets (month, category_id, limit_amount)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT `+constraintBudgetMonthCategory+`
		DO UPDATE SET limit_amount = EXCLUDED.limit_amount, updated_at = now()
		RETURNING `+budgetColumns+`, (xmax = 0) AS inserted`,
		budget.Month.Time(), budget.CategoryID, budget.LimitAmount,
	)

	var (
		b        domain.Budget
		month    time.Time
		inserted bool
	)
	if err := row.Scan(&b.ID, &month, &b.CategoryID, &b.LimitAmount, &b.CreatedAt, &b.UpdatedAt, &inserted); err != nil {
		return nil, false, err
	}
	b.Month = domain.MonthOf(month)
	return &b, inserted, nil
}

// GetByID retrieves a budget by its ID
func (r *BudgetRepository) GetByID(ctx context.Context, id int64) (*domain.Budget, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id)
	budget, err := scanBudget(row)
	if err != nil {
		return nil, translateBudgetError("budget.get", err, nil)
	}
	return budget, nil
}

// List retrieves budgets matching the filter ordered by month, then category
func (r *BudgetRepository) List(ctx context.Context, filter domain.BudgetFilter) ([]*domain.Budget, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	where, args := budgetWhereClause(filter)
	query := `SELECT ` + budgetColumns + ` FROM budgets` + where + ` ORDER BY month, category_id, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translateBudgetError("budget.list", err, nil)
	}
	defer rows.Close()

	result := make([]*domain.Budget, 0)
	for rows.Next() {
		budget, err := scanBudget(rows)
		if err != nil {
			return nil, translateBudgetError("budget.list", err, nil)
		}
		result = append(result, budget)
	}
	if err := rows.Err(); err != nil {
		return nil, translateBudgetError("budget.list", err, nil)
	}
	return result, nil
}

// Count returns the number of budgets matching the filter, ignoring pagination
func (r *BudgetRepository) Count(ctx context.Context, filter domain.BudgetFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	where, args := budgetWhereClause(filter)
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM budgets`+where, args...).Scan(&count); err != nil {
		return 0, translateBudgetError("budget.count", err, nil)
	}
	return count, nil
}

// UpdateLimit replaces a budget's limit and refreshes updated_at
func (r *BudgetRepository) UpdateLimit(ctx context.Context, id int64, limitAmount int64) (*domain.Budget, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		UPDATE budgets
		SET limit_amount = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+budgetColumns,
		id, limitAmount,
	)

	budget, err := scanBudget(row)
	if err != nil {
		return nil, translateBudgetError("budget.update", err, nil)
	}
	return budget, nil
}

// Delete hard-deletes a budget and returns the removed row
func (r *BudgetRepository) Delete(ctx context.Context, id int64) (*domain.Budget, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `DELETE FROM budgets WHERE id = $1 RETURNING `+budgetColumns, id)
	budget, err := scanBudget(row)
	if err != nil {
		return nil, translateBudgetError("budget.delete", err, nil)
	}
	return budget, nil
}

// budgetWhereClause builds the predicate shared by List and Count so both agree on the filter
func budgetWhereClause(filter domain.BudgetFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.Month != nil {
		args = append(args, filter.Month.Time())
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Helper function to convert a budgets row to domain
func scanBudget(row pgx.Row) (*domain.Budget, error) {
	var (
		b     domain.Budget
		month time.Time
	)
	if err := row.Scan(&b.ID, &month, &b.CategoryID, &b.LimitAmount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Month = domain.MonthOf(month)
	return &b, nil
}
