package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestPool connects to TEST_DATABASE_URL, migrates, and empties the tables.
// Tests are skipped when no database is configured.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	require.NoError(t, RunMigrations(databaseURL))

	ctx := context.Background()
	pool, err := NewPool(ctx, PoolConfig{DatabaseURL: databaseURL, MaxConns: 8, QueryTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE budgets, transactions, wallets, categories RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func insertCategory(t *testing.T, pool *pgxpool.Pool, name string, categoryType domain.CategoryType) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO categories (name, type) VALUES ($1, $2) RETURNING id`, name, string(categoryType),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertWallet(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `INSERT INTO wallets (name) VALUES ('Main') RETURNING id`).Scan(&id)
	require.NoError(t, err)
	return id
}

func insertTransaction(t *testing.T, pool *pgxpool.Pool, walletID, categoryID, amount int64, txType domain.TransactionType, occurredOn time.Time) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO transactions (wallet_id, category_id, amount, type, occurred_on) VALUES ($1, $2, $3, $4, $5)`,
		walletID, categoryID, amount, string(txType), occurredOn,
	)
	require.NoError(t, err)
}

func TestBudgetRepository_CreateAndGet(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	categoryID := insertCategory(t, pool, "Groceries", domain.CategoryTypeExpense)

	created, err := repo.Create(ctx, &domain.Budget{
		Month:       domain.NewMonth(2024, time.March),
		CategoryID:  categoryID,
		LimitAmount: 50000,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	fetched, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", fetched.Month.String())
	assert.Equal(t, categoryID, fetched.CategoryID)
	assert.Equal(t, int64(50000), fetched.LimitAmount)
}

func TestBudgetRepository_CreateDuplicate(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	categoryID := insertCategory(t, pool, "Groceries", domain.CategoryTypeExpense)
	budget := &domain.Budget{Month: domain.NewMonth(2024, time.March), CategoryID: categoryID, LimitAmount: 100}

	_, err := repo.Create(ctx, budget)
	require.NoError(t, err)

	_, err = repo.Create(ctx, budget)
	assert.ErrorIs(t, err, domain.ErrDuplicateBudget)
}

func TestBudgetRepository_CreateUnknownCategory(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)

	_, err := repo.Create(context.Background(), &domain.Budget{
		Month:       domain.NewMonth(2024, time.March),
		CategoryID:  9999,
		LimitAmount: 100,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestBudgetRepository_UpsertTwice(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	categoryID := insertCategory(t, pool, "Transport", domain.CategoryTypeExpense)
	month := domain.NewMonth(2024, time.April)

	first, created, err := repo.Upsert(ctx, &domain.Budget{Month: month, CategoryID: categoryID, LimitAmount: 10000})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Upsert(ctx, &domain.Budget{Month: month, CategoryID: categoryID, LimitAmount: 20000})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(20000), second.LimitAmount)

	count, err := repo.Count(ctx, domain.BudgetFilter{Month: &month, CategoryID: &categoryID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestBudgetRepository_ConcurrentUpsert(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	categoryID := insertCategory(t, pool, "Dining", domain.CategoryTypeExpense)
	month := domain.NewMonth(2024, time.April)

	limits := []int64{10000, 20000, 30000, 40000, 50000, 60000, 70000, 80000}
	errs := make([]error, len(limits))

	var wg sync.WaitGroup
	for i, limit := range limits {
		wg.Add(1)
		go func(i int, limit int64) {
			defer wg.Done()
			_, _, errs[i] = repo.Upsert(ctx, &domain.Budget{Month: month, CategoryID: categoryID, LimitAmount: limit})
		}(i, limit)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	budgets, err := repo.List(ctx, domain.BudgetFilter{Month: &month, CategoryID: &categoryID})
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Contains(t, limits, budgets[0].LimitAmount)
}

func TestBudgetRepository_ListAndCountAgree(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	groceries := insertCategory(t, pool, "Groceries", domain.CategoryTypeExpense)
	rent := insertCategory(t, pool, "Rent", domain.CategoryTypeExpense)
	march := domain.NewMonth(2024, time.March)
	april := domain.NewMonth(2024, time.April)

	for _, b := range []domain.Budget{
		{Month: april, CategoryID: rent, LimitAmount: 1},
		{Month: march, CategoryID: rent, LimitAmount: 2},
		{Month: march, CategoryID: groceries, LimitAmount: 3},
	} {
		b := b
		_, err := repo.Create(ctx, &b)
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, domain.BudgetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, groceries, all[0].CategoryID)
	assert.Equal(t, rent, all[1].CategoryID)
	assert.True(t, april.Equal(all[2].Month))

	marchOnly, err := repo.List(ctx, domain.BudgetFilter{Month: &march})
	require.NoError(t, err)
	marchCount, err := repo.Count(ctx, domain.BudgetFilter{Month: &march})
	require.NoError(t, err)
	assert.Len(t, marchOnly, 2)
	assert.Equal(t, int64(2), marchCount)

	page, err := repo.List(ctx, domain.BudgetFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, rent, page[0].CategoryID)

	pagedCount, err := repo.Count(ctx, domain.BudgetFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), pagedCount)
}

func TestBudgetRepository_UpdateAndDelete(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewBudgetRepository(pool, 5*time.Second)
	ctx := context.Background()
	categoryID := insertCategory(t, pool, "Utilities", domain.CategoryTypeExpense)

	created, err := repo.Create(ctx, &domain.Budget{Month: domain.NewMonth(2024, time.May), CategoryID: categoryID, LimitAmount: 100})
	require.NoError(t, err)

	updated, err := repo.UpdateLimit(ctx, created.ID, 250)
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.LimitAmount)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	_, err = repo.UpdateLimit(ctx, created.ID+1000, 250)
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)

	_, err = repo.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)
}

func TestLedgerRepository_SumSpent(t *testing.T) {
	pool := setupTestPool(t)
	ledger := NewLedgerRepository(pool, 5*time.Second)
	ctx := context.Background()
	walletID := insertWallet(t, pool)
	food := insertCategory(t, pool, "Food", domain.CategoryTypeExpense)
	other := insertCategory(t, pool, "Other", domain.CategoryTypeExpense)
	march := domain.NewMonth(2024, time.March)

	insertTransaction(t, pool, walletID, food, -10000, domain.TransactionTypeExpense, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	insertTransaction(t, pool, walletID, food, -15000, domain.TransactionTypeExpense, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	insertTransaction(t, pool, walletID, food, 8000, domain.TransactionTypeExpense, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	// Outside the month, another category, or not an expense
	insertTransaction(t, pool, walletID, food, -500, domain.TransactionTypeExpense, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	insertTransaction(t, pool, walletID, food, -700, domain.TransactionTypeExpense, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
	insertTransaction(t, pool, walletID, food, 9000, domain.TransactionTypeIncome, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	insertTransaction(t, pool, walletID, other, -1234, domain.TransactionTypeExpense, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	total, err := ledger.SumSpent(ctx, march, food)
	require.NoError(t, err)
	assert.Equal(t, int64(33000), total)

	empty, err := ledger.SumSpent(ctx, domain.NewMonth(2023, time.January), food)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty)
}

func TestBudgetWhereClause(t *testing.T) {
	month := domain.NewMonth(2024, time.March)
	categoryID := int64(5)

	where, args := budgetWhereClause(domain.BudgetFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = budgetWhereClause(domain.BudgetFilter{Month: &month, CategoryID: &categoryID})
	assert.Equal(t, " WHERE month = $1 AND category_id = $2", where)
	require.Len(t, args, 2)
	assert.Equal(t, month.Time(), args[0])
	assert.Equal(t, categoryID, args[1])
}
