package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive-be/internal/models"
)

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	Type       string
	CategoryID string
	From       *time.Time
	To         *time.Time
	Deleted    *bool
}

// TransactionServiceProvider defines the interface for transaction services.
type TransactionServiceProvider interface {
	CreateTransaction(userID string, tx models.Transaction) (models.Transaction, error)
	GetTransactionByID(userID, id string) (models.Transaction, error)
	ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error)
	UpdateTransaction(userID, id string, tx models.Transaction) (models.Transaction, error)
	DeleteTransaction(userID, id string) error
	RestoreTransaction(userID, id string) (models.Transaction, error)
	GetSummary(userID string, from, to *time.Time) (models.TransactionSummary, error)
}

// TransactionService provides business logic for the expense ledger.
type TransactionService struct {
	db     *sql.DB
	events EventServiceProvider
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(db *sql.DB, events EventServiceProvider) *TransactionService {
	return &TransactionService{db: db, events: events}
}

const transactionColumns = `x.id, x.user_id, x.category_id, x.type, x.amount_cents, x.description,
	x.occurred_at, x.deleted, x.deleted_at, x.created_at, c.name`

const transactionFrom = ` FROM transactions x LEFT JOIN categories c ON c.id = x.category_id`

// CreateTransaction records a new income or expense entry.
func (s *TransactionService) CreateTransaction(userID string, tx models.Transaction) (models.Transaction, error) {
	if err := s.validateTransaction(userID, &tx); err != nil {
		return models.Transaction{}, err
	}

	tx.ID = uuid.New().String()
	tx.UserID = userID
	tx.CreatedAt = time.Now().UTC()

	_, err := s.db.Exec(`INSERT INTO transactions (id, user_id, category_id, type, amount_cents, description, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.CategoryID, tx.Type, tx.AmountCents, tx.Description, tx.OccurredAt.UTC(), tx.CreatedAt)
	if err != nil {
		return models.Transaction{}, err
	}

	s.events.CreateEvent("transaction.create", "info", fmt.Sprintf("Transaction of %d cents recorded.", tx.AmountCents), &userID)
	return s.GetTransactionByID(userID, tx.ID)
}

// GetTransactionByID retrieves one transaction regardless of its deleted flag.
func (s *TransactionService) GetTransactionByID(userID, id string) (models.Transaction, error) {
	row := s.db.QueryRow("SELECT "+transactionColumns+transactionFrom+" WHERE x.id = ? AND x.user_id = ?", id, userID)
	return scanTransaction(row)
}

// ListTransactions lists the user's transactions, newest first.
func (s *TransactionService) ListTransactions(userID string, filter TransactionFilter) ([]models.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionFrom + " WHERE x.user_id = ?"
	args := []interface{}{userID}

	wantDeleted := filter.Deleted != nil && *filter.Deleted
	query += " AND x.deleted = ?"
	args = append(args, wantDeleted)

	if filter.Type != "" {
		query += " AND x.type = ?"
		args = append(args, filter.Type)
	}
	if filter.CategoryID != "" {
		query += " AND x.category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.From != nil {
		query += " AND x.occurred_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND x.occurred_at <= ?"
		args = append(args, filter.To.UTC())
	}

	query += " ORDER BY x.occurred_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// UpdateTransaction replaces a transaction's editable fields.
func (s *TransactionService) UpdateTransaction(userID, id string, tx models.Transaction) (models.Transaction, error) {
	if _, err := s.GetTransactionByID(userID, id); err != nil {
		return models.Transaction{}, err
	}
	if err := s.validateTransaction(userID, &tx); err != nil {
		return models.Transaction{}, err
	}

	_, err := s.db.Exec(`UPDATE transactions SET category_id = ?, type = ?, amount_cents = ?, description = ?, occurred_at = ?
		WHERE id = ? AND user_id = ?`,
		tx.CategoryID, tx.Type, tx.AmountCents, tx.Description, tx.OccurredAt.UTC(), id, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	return s.GetTransactionByID(userID, id)
}

// DeleteTransaction soft-deletes a transaction.
func (s *TransactionService) DeleteTransaction(userID, id string) error {
	if _, err := s.GetTransactionByID(userID, id); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE transactions SET deleted = 1, deleted_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), id, userID)
	return err
}

// RestoreTransaction clears the deleted flag and timestamp.
func (s *TransactionService) RestoreTransaction(userID, id string) (models.Transaction, error) {
	res, err := s.db.Exec("UPDATE transactions SET deleted = 0, deleted_at = NULL WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return models.Transaction{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Transaction{}, fmt.Errorf("%w: transaction", ErrNotFound)
	}
	return s.GetTransactionByID(userID, id)
}

// GetSummary totals the user's live ledger over an optional window: income,
// expenses, net, and a per-category expense breakdown sorted descending.
func (s *TransactionService) GetSummary(userID string, from, to *time.Time) (models.TransactionSummary, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		FROM transactions WHERE user_id = ? AND deleted = 0`
	args := []interface{}{userID}
	if from != nil {
		query += " AND occurred_at >= ?"
		args = append(args, from.UTC())
	}
	if to != nil {
		query += " AND occurred_at <= ?"
		args = append(args, to.UTC())
	}

	var summary models.TransactionSummary
	if err := s.db.QueryRow(query, args...).Scan(&summary.IncomeCents, &summary.ExpenseCents); err != nil {
		return models.TransactionSummary{}, err
	}
	summary.NetCents = summary.IncomeCents - summary.ExpenseCents

	byCat := `SELECT c.id, c.name, c.color, c.icon, COALESCE(SUM(x.amount_cents), 0) AS total
		FROM transactions x
		JOIN categories c ON c.id = x.category_id
		WHERE x.user_id = ? AND x.deleted = 0 AND x.type = 'expense'`
	catArgs := []interface{}{userID}
	if from != nil {
		byCat += " AND x.occurred_at >= ?"
		catArgs = append(catArgs, from.UTC())
	}
	if to != nil {
		byCat += " AND x.occurred_at <= ?"
		catArgs = append(catArgs, to.UTC())
	}
	byCat += " GROUP BY c.id, c.name, c.color, c.icon ORDER BY total DESC"

	rows, err := s.db.Query(byCat, catArgs...)
	if err != nil {
		return models.TransactionSummary{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var row models.CategoryExpenseTotal
		if err := rows.Scan(&row.CategoryID, &row.Name, &row.Color, &row.Icon, &row.TotalCents); err != nil {
			return models.TransactionSummary{}, err
		}
		summary.ByCategory = append(summary.ByCategory, row)
	}
	return summary, rows.Err()
}

// validateTransaction checks field values and the same-user category invariant.
func (s *TransactionService) validateTransaction(userID string, tx *models.Transaction) error {
	var problems []string
	if tx.Type != models.TransactionIncome && tx.Type != models.TransactionExpense {
		problems = append(problems, "type must be income or expense")
	}
	if tx.AmountCents <= 0 {
		problems = append(problems, "amount must be positive")
	}
	if tx.OccurredAt.IsZero() {
		problems = append(problems, "occurredAt is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
	}

	if tx.CategoryID != nil && *tx.CategoryID != "" {
		var deleted bool
		err := s.db.QueryRow("SELECT deleted FROM categories WHERE id = ? AND user_id = ?", *tx.CategoryID, userID).Scan(&deleted)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: category", ErrNotFound)
		}
		if err != nil {
			return err
		}
		if deleted {
			return fmt.Errorf("%w: category is deleted", ErrValidation)
		}
	} else {
		tx.CategoryID = nil
	}
	return nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var tx models.Transaction
	var categoryID, categoryName sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(&tx.ID, &tx.UserID, &categoryID, &tx.Type, &tx.AmountCents, &tx.Description,
		&tx.OccurredAt, &tx.Deleted, &deletedAt, &tx.CreatedAt, &categoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Transaction{}, fmt.Errorf("%w: transaction", ErrNotFound)
		}
		return models.Transaction{}, err
	}

	if categoryID.Valid {
		tx.CategoryID = &categoryID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		tx.DeletedAt = &t
	}
	if categoryName.Valid {
		tx.CategoryName = &categoryName.String
	}
	return tx, nil
}
