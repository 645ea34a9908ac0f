package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/fortuna/fortuna-budget/internal/domain"
	"github.com/dafibh/fortuna/fortuna-budget/internal/websocket"
)

type budgetKey struct {
	month      time.Time
	categoryID int64
}

// MockBudgetRepository is an in-memory implementation of domain.BudgetRepository.
// It enforces the (month, category_id) uniqueness and category references like the real store,
// and is safe for concurrent use.
type MockBudgetRepository struct {
	mu         sync.Mutex
	Budgets    map[int64]*domain.Budget
	byKey      map[budgetKey]int64
	Categories map[int64]bool
	NextID     int64

	// Optional overrides for error injection
	CreateFn func(ctx context.Context, budget *domain.Budget) (*domain.Budget, error)
	ListFn   func(ctx context.Context, filter domain.BudgetFilter) ([]*domain.Budget, error)
	CountFn  func(ctx context.Context, filter domain.BudgetFilter) (int64, error)
}

// NewMockBudgetRepository creates a new MockBudgetRepository
func NewMockBudgetRepository() *MockBudgetRepository {
	return &MockBudgetRepository{
		Budgets:    make(map[int64]*domain.Budget),
		byKey:      make(map[budgetKey]int64),
		Categories: make(map[int64]bool),
		NextID:     1,
	}
}

// AddCategory registers a category ID so budgets may reference it (helper for tests)
func (m *MockBudgetRepository) AddCategory(ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.Categories[id] = true
	}
}

// AddBudget stores a budget directly (helper for tests)
func (m *MockBudgetRepository) AddBudget(budget *domain.Budget) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if budget.ID == 0 {
		budget.ID = m.NextID
	}
	if budget.ID >= m.NextID {
		m.NextID = budget.ID + 1
	}
	m.Categories[budget.CategoryID] = true
	m.Budgets[budget.ID] = budget
	m.byKey[keyOf(budget)] = budget.ID
}

// Len returns the number of stored budgets
func (m *MockBudgetRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Budgets)
}

// Create inserts a budget or fails on a duplicate key or unknown category
func (m *MockBudgetRepository) Create(ctx context.Context, budget *domain.Budget) (*domain.Budget, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, budget)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Categories[budget.CategoryID] {
		return nil, &domain.InvalidReferenceError{Entity: "category", ID: budget.CategoryID}
	}
	if _, exists := m.byKey[keyOf(budget)]; exists {
		return nil, &domain.DuplicateBudgetError{Month: budget.Month, CategoryID: budget.CategoryID}
	}
	return copyBudget(m.insertLocked(budget)), nil
}

// Upsert inserts or replaces the limit of the budget for the key under a single lock
func (m *MockBudgetRepository) Upsert(ctx context.Context, budget *domain.Budget) (*domain.Budget, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Categories[budget.CategoryID] {
		return nil, false, &domain.InvalidReferenceError{Entity: "category", ID: budget.CategoryID}
	}
	if id, exists := m.byKey[keyOf(budget)]; exists {
		existing := m.Budgets[id]
		existing.LimitAmount = budget.LimitAmount
		existing.UpdatedAt = time.Now()
		return copyBudget(existing), false, nil
	}
	return copyBudget(m.insertLocked(budget)), true, nil
}

func (m *MockBudgetRepository) insertLocked(budget *domain.Budget) *domain.Budget {
	now := time.Now()
	stored := &domain.Budget{
		ID:          m.NextID,
		Month:       budget.Month,
		CategoryID:  budget.CategoryID,
		LimitAmount: budget.LimitAmount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.NextID++
	m.Budgets[stored.ID] = stored
	m.byKey[keyOf(stored)] = stored.ID
	return stored
}

// GetByID retrieves a budget by ID
func (m *MockBudgetRepository) GetByID(ctx context.Context, id int64) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if budget, ok := m.Budgets[id]; ok {
		return copyBudget(budget), nil
	}
	return nil, domain.ErrBudgetNotFound
}

// List returns matching budgets ordered by month, category and ID, paged by Limit/Offset
func (m *MockBudgetRepository) List(ctx context.Context, filter domain.BudgetFilter) ([]*domain.Budget, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}

	matched := m.match(filter)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*domain.Budget{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// Count returns the number of matching budgets, ignoring pagination
func (m *MockBudgetRepository) Count(ctx context.Context, filter domain.BudgetFilter) (int64, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	return int64(len(m.match(filter))), nil
}

func (m *MockBudgetRepository) match(filter domain.BudgetFilter) []*domain.Budget {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.Budget, 0)
	for _, budget := range m.Budgets {
		if filter.Month != nil && !budget.Month.Equal(*filter.Month) {
			continue
		}
		if filter.CategoryID != nil && budget.CategoryID != *filter.CategoryID {
			continue
		}
		result = append(result, copyBudget(budget))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.Month.Equal(b.Month) {
			return a.Month.Before(b.Month)
		}
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		return a.ID < b.ID
	})
	return result
}

// UpdateLimit replaces the limit of an existing budget
func (m *MockBudgetRepository) UpdateLimit(ctx context.Context, id int64, limitAmount int64) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget, ok := m.Budgets[id]
	if !ok {
		return nil, domain.ErrBudgetNotFound
	}
	budget.LimitAmount = limitAmount
	budget.UpdatedAt = time.Now()
	return copyBudget(budget), nil
}

// Delete removes a budget and returns it
func (m *MockBudgetRepository) Delete(ctx context.Context, id int64) (*domain.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget, ok := m.Budgets[id]
	if !ok {
		return nil, domain.ErrBudgetNotFound
	}
	delete(m.Budgets, id)
	delete(m.byKey, keyOf(budget))
	return budget, nil
}

func keyOf(budget *domain.Budget) budgetKey {
	return budgetKey{month: budget.Month.Time(), categoryID: budget.CategoryID}
}

func copyBudget(budget *domain.Budget) *domain.Budget {
	c := *budget
	return &c
}

// MockLedgerReader is an in-memory implementation of domain.LedgerReader
type MockLedgerReader struct {
	mu           sync.Mutex
	Transactions []domain.Transaction
	Calls        int
	SumSpentFn   func(ctx context.Context, month domain.Month, categoryID int64) (int64, error)
}

// NewMockLedgerReader creates a new MockLedgerReader
func NewMockLedgerReader() *MockLedgerReader {
	return &MockLedgerReader{
		Transactions: make([]domain.Transaction, 0),
	}
}

// AddTransaction records a ledger entry (helper for tests)
func (m *MockLedgerReader) AddTransaction(tx domain.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.ID = int64(len(m.Transactions) + 1)
	m.Transactions = append(m.Transactions, tx)
}

// AddExpense records an expense of amount on date for categoryID (helper for tests)
func (m *MockLedgerReader) AddExpense(categoryID int64, amount int64, date time.Time) {
	m.AddTransaction(domain.Transaction{
		CategoryID: categoryID,
		Amount:     amount,
		Type:       domain.TransactionTypeExpense,
		OccurredOn: date,
	})
}

// SumSpent sums absolute expense amounts for the category within the calendar month
func (m *MockLedgerReader) SumSpent(ctx context.Context, month domain.Month, categoryID int64) (int64, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.SumSpentFn != nil {
		return m.SumSpentFn(ctx, month, categoryID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, tx := range m.Transactions {
		if tx.CategoryID != categoryID || tx.Type != domain.TransactionTypeExpense {
			continue
		}
		if !domain.MonthOf(tx.OccurredOn).Equal(month) {
			continue
		}
		if tx.Amount < 0 {
			total -= tx.Amount
		} else {
			total += tx.Amount
		}
	}
	return total, nil
}

// PublishedEvent is an event captured by MockEventPublisher
type PublishedEvent struct {
	Topic string
	Event websocket.Event
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{Events: make([]PublishedEvent, 0)}
}

// Publish records the event
func (m *MockEventPublisher) Publish(topic string, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{Topic: topic, Event: event})
}

// Published returns a copy of the recorded events
func (m *MockEventPublisher) Published() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]PublishedEvent, len(m.Events))
	copy(copied, m.Events)
	return copied
}
