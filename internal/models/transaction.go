package models

import "time"

// Transaction types.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction is a single income or expense entry. Amounts are stored in
// cents to keep arithmetic exact.
type Transaction struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CategoryID  *string    `json:"categoryId,omitempty"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amountCents"`
	Description string     `json:"description"`
	OccurredAt  time.Time  `json:"occurredAt"`
	Deleted     bool       `json:"deleted"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	CategoryName *string `json:"categoryName,omitempty"`
}

// TransactionSummary totals a user's ledger over an optional window.
type TransactionSummary struct {
	IncomeCents  int64                  `json:"incomeCents"`
	ExpenseCents int64                  `json:"expenseCents"`
	NetCents     int64                  `json:"netCents"`
	ByCategory   []CategoryExpenseTotal `json:"byCategory"`
}

// CategoryExpenseTotal is one row of the per-category expense breakdown.
type CategoryExpenseTotal struct {
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	Icon       string `json:"icon"`
	TotalCents int64  `json:"totalCents"`
}
