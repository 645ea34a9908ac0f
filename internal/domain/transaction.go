package domain

import "time"

type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Transaction is a ledger entry. Amount is signed, in the smallest currency unit.
// The ledger is written elsewhere; this service only reads it.
type Transaction struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"wallet_id"`
	CategoryID  int64           `json:"category_id"`
	Amount      int64           `json:"amount"`
	Type        TransactionType `json:"type"`
	OccurredOn  time.Time       `json:"occurred_on"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
