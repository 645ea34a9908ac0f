package postgres

import (
	"context"
	"time"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository implements domain.LedgerReader over the transactions table.
// It only ever reads.
type LedgerRepository struct {
	db           querier
	queryTimeout time.Duration
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{
		db:           pool,
		queryTimeout: queryTimeout,
	}
}

// SumSpent sums the absolute amounts of expense transactions for a category within a calendar month.
// Returns 0 when nothing matches.
func (r *LedgerRepository) SumSpent(ctx context.Context, month domain.Month, categoryID int64) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(ABS(amount)), 0)::bigint
		FROM transactions
		WHERE category_id = $1
		  AND type = $2
		  AND occurred_on >= $3
		  AND occurred_on < $4`,
		categoryID, string(domain.TransactionTypeExpense), month.Time(), month.End(),
	).Scan(&total)
	if err != nil {
		return 0, domain.NewStorageError("ledger.sum_spent", err)
	}
	return total, nil
}
