package service

import (
	"context"
	"errors"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/dafibh/fortuna/fortuna-budget/internal/websocket"
	"golang.org/x/sync/errgroup"
)

// DefaultActualsConcurrency bounds concurrent ledger queries per listing
const DefaultActualsConcurrency = 4

// BudgetService handles budget business logic
type BudgetService struct {
	budgetRepo         domain.BudgetRepository
	ledger             domain.LedgerReader
	eventPublisher     websocket.EventPublisher
	actualsConcurrency int
}

// NewBudgetService creates a new BudgetService
func NewBudgetService(budgetRepo domain.BudgetRepository, ledger domain.LedgerReader) *BudgetService {
	return &BudgetService{
		budgetRepo:         budgetRepo,
		ledger:             ledger,
		actualsConcurrency: DefaultActualsConcurrency,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *BudgetService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetActualsConcurrency sets how many ledger sums run at once when listing with actuals
func (s *BudgetService) SetActualsConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.actualsConcurrency = n
}

// publishEvent publishes a WebSocket event on the budget's month topic if a publisher is configured
func (s *BudgetService) publishEvent(budget *domain.Budget, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(budget.Month.Key(), event)
	}
}

// BudgetInput is the payload for create and upsert
type BudgetInput struct {
	Month       domain.Month
	CategoryID  int64
	LimitAmount int64
}

// BudgetList is a page of budgets plus the total matching the filter
type BudgetList struct {
	Budgets []*domain.Budget
	Count   int64
}

// BudgetWithActualList is a page of budgets merged with actual spending
type BudgetWithActualList struct {
	Budgets []*domain.BudgetWithActual
	Count   int64
}

// CreateBudget inserts a new budget and fails with DuplicateBudgetError if
// (month, category) already has one
func (s *BudgetService) CreateBudget(ctx context.Context, input BudgetInput) (*domain.Budget, error) {
	if err := validateBudgetInput(input); err != nil {
		return nil, err
	}

	budget, err := s.budgetRepo.Create(ctx, &domain.Budget{
		Month:       input.Month,
		CategoryID:  input.CategoryID,
		LimitAmount: input.LimitAmount,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(budget, websocket.BudgetCreated(budget))
	return budget, nil
}

// UpsertBudget sets the limit for (month, category), creating the budget if needed.
// The result does not reveal whether a row was created or updated.
func (s *BudgetService) UpsertBudget(ctx context.Context, input BudgetInput) (*domain.Budget, error) {
	if err := validateBudgetInput(input); err != nil {
		return nil, err
	}

	budget, created, err := s.budgetRepo.Upsert(ctx, &domain.Budget{
		Month:       input.Month,
		CategoryID:  input.CategoryID,
		LimitAmount: input.LimitAmount,
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.publishEvent(budget, websocket.BudgetCreated(budget))
	} else {
		s.publishEvent(budget, websocket.BudgetUpdated(budget))
	}
	return budget, nil
}

// GetBudget retrieves a budget by ID
func (s *BudgetService) GetBudget(ctx context.Context, id int64) (*domain.Budget, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidBudgetID
	}
	return s.budgetRepo.GetByID(ctx, id)
}

// ListBudgets returns budgets matching the filter ordered by month then category,
// with the total count for the same filter
func (s *BudgetService) ListBudgets(ctx context.Context, filter domain.BudgetFilter) (*BudgetList, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	budgets, err := s.budgetRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.budgetRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &BudgetList{Budgets: budgets, Count: count}, nil
}

// GetBudgetWithActual retrieves a budget merged with its month's spending
func (s *BudgetService) GetBudgetWithActual(ctx context.Context, id int64) (*domain.BudgetWithActual, error) {
	budget, err := s.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}

	spent, err := s.ledger.SumSpent(ctx, budget.Month, budget.CategoryID)
	if err != nil {
		return nil, wrapLedgerError(err)
	}
	return domain.NewBudgetWithActual(*budget, spent), nil
}

// ListBudgetsWithActual lists budgets for a month merged with their spending.
// A month is required so aggregation stays bounded.
func (s *BudgetService) ListBudgetsWithActual(ctx context.Context, filter domain.BudgetFilter) (*BudgetWithActualList, error) {
	if filter.Month == nil || filter.Month.IsZero() {
		return nil, domain.ErrMissingMonth
	}

	list, err := s.ListBudgets(ctx, filter)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.BudgetWithActual, len(list.Budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.actualsConcurrency)

	for i, budget := range list.Budgets {
		i, budget := i, budget
		g.Go(func() error {
			spent, err := s.ledger.SumSpent(gctx, budget.Month, budget.CategoryID)
			if err != nil {
				return wrapLedgerError(err)
			}
			results[i] = domain.NewBudgetWithActual(*budget, spent)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &BudgetWithActualList{Budgets: results, Count: list.Count}, nil
}

// UpdateBudget applies a partial update. Only the limit is mutable.
func (s *BudgetService) UpdateBudget(ctx context.Context, id int64, update domain.BudgetUpdate) (*domain.Budget, error) {
	if update.IsEmpty() {
		return nil, domain.ErrNoFieldsProvided
	}
	if id <= 0 {
		return nil, domain.ErrInvalidBudgetID
	}
	if *update.LimitAmount < 0 {
		return nil, domain.ErrNegativeLimitAmount
	}

	budget, err := s.budgetRepo.UpdateLimit(ctx, id, *update.LimitAmount)
	if err != nil {
		return nil, err
	}

	s.publishEvent(budget, websocket.BudgetUpdated(budget))
	return budget, nil
}

// DeleteBudget hard-deletes a budget. It reports false when no budget had that ID.
func (s *BudgetService) DeleteBudget(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, domain.ErrInvalidBudgetID
	}

	budget, err := s.budgetRepo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrBudgetNotFound) {
			return false, nil
		}
		return false, err
	}

	s.publishEvent(budget, websocket.BudgetDeleted(budget))
	return true, nil
}

func validateBudgetInput(input BudgetInput) error {
	if input.Month.IsZero() {
		return domain.NewValidationError("month", "month is required")
	}
	if input.CategoryID <= 0 {
		return domain.ErrInvalidCategoryID
	}
	if input.LimitAmount <= 0 {
		return domain.ErrInvalidLimitAmount
	}
	return nil
}

func normalizeFilter(filter domain.BudgetFilter) (domain.BudgetFilter, error) {
	if filter.CategoryID != nil && *filter.CategoryID <= 0 {
		return filter, domain.ErrInvalidCategoryID
	}
	if filter.Offset < 0 {
		return filter, domain.NewValidationError("offset", "offset must not be negative")
	}
	if filter.Limit < 0 {
		return filter, domain.NewValidationError("limit", "limit must not be negative")
	}
	if filter.Limit == 0 {
		filter.Limit = domain.DefaultListLimit
	}
	if filter.Limit > domain.MaxListLimit {
		filter.Limit = domain.MaxListLimit
	}
	return filter, nil
}

// wrapLedgerError keeps ledger failures inside the StorageError taxonomy
func wrapLedgerError(err error) error {
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewStorageError("ledger.sum_spent", err)
}
