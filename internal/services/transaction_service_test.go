package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/models"
)

// testExpense builds a valid expense entry for category catID.
func testExpense(catID string, cents int64) models.Transaction {
	tx := models.Transaction{
		Type:        models.TransactionExpense,
		AmountCents: cents,
		OccurredAt:  time.Now().UTC(),
	}
	if catID != "" {
		tx.CategoryID = &catID
	}
	return tx
}

func testIncome(cents int64, occurred time.Time) models.Transaction {
	return models.Transaction{Type: models.TransactionIncome, AmountCents: cents, OccurredAt: occurred}
}

func TestCreateTransaction_Validation(t *testing.T) {
	_, users, _, _, transactions, _ := newTestServices(t)
	userID := mustRegister(t, users, "alice")

	_, err := transactions.CreateTransaction(userID, models.Transaction{Type: "transfer", AmountCents: 100, OccurredAt: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionExpense, AmountCents: 0, OccurredAt: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionExpense, AmountCents: -5, OccurredAt: time.Now()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionIncome, AmountCents: 100})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateTransaction_CrossTenantCategoryRejected(t *testing.T) {
	_, users, _, categories, transactions, _ := newTestServices(t)
	alice := mustRegister(t, users, "alice")
	bob := mustRegister(t, users, "bob")

	bobCat, err := categories.CreateCategory(bob, models.Category{Name: "Work"})
	require.NoError(t, err)

	_, err = transactions.CreateTransaction(alice, testExpense(bobCat.ID, 100))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactionOwnershipScoping(t *testing.T) {
	_, users, _, _, transactions, _ := newTestServices(t)
	alice := mustRegister(t, users, "alice")
	bob := mustRegister(t, users, "bob")

	tx, err := transactions.CreateTransaction(alice, testExpense("", 250))
	require.NoError(t, err)

	_, err = transactions.GetTransactionByID(bob, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, transactions.DeleteTransaction(bob, tx.ID), ErrNotFound)
	_, err = transactions.RestoreTransaction(bob, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactions_Filters(t *testing.T) {
	_, users, _, categories, transactions, _ := newTestServices(t)
	userID := mustRegister(t, users, "alice")

	food, err := categories.CreateCategory(userID, models.Category{Name: "Food"})
	require.NoError(t, err)

	jan := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionExpense, AmountCents: 1200, CategoryID: &food.ID, OccurredAt: jan})
	require.NoError(t, err)
	_, err = transactions.CreateTransaction(userID, testIncome(50000, feb))
	require.NoError(t, err)

	byType, err := transactions.ListTransactions(userID, TransactionFilter{Type: models.TransactionIncome})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, int64(50000), byType[0].AmountCents)

	byCategory, err := transactions.ListTransactions(userID, TransactionFilter{CategoryID: food.ID})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.NotNil(t, byCategory[0].CategoryName)
	assert.Equal(t, "Food", *byCategory[0].CategoryName)

	winStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	byWindow, err := transactions.ListTransactions(userID, TransactionFilter{From: &winStart})
	require.NoError(t, err)
	require.Len(t, byWindow, 1)
	assert.Equal(t, models.TransactionIncome, byWindow[0].Type)
}

func TestTransactionSoftDeleteRestore(t *testing.T) {
	_, users, _, _, transactions, _ := newTestServices(t)
	userID := mustRegister(t, users, "alice")

	tx, err := transactions.CreateTransaction(userID, testExpense("", 700))
	require.NoError(t, err)
	require.NoError(t, transactions.DeleteTransaction(userID, tx.ID))

	visible, err := transactions.ListTransactions(userID, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	restored, err := transactions.RestoreTransaction(userID, tx.ID)
	require.NoError(t, err)
	assert.False(t, restored.Deleted)
	assert.Nil(t, restored.DeletedAt)
}

func TestGetSummary(t *testing.T) {
	_, users, _, categories, transactions, _ := newTestServices(t)
	userID := mustRegister(t, users, "alice")

	food, err := categories.CreateCategory(userID, models.Category{Name: "Food", Color: "#123456", Icon: "utensils"})
	require.NoError(t, err)
	rent, err := categories.CreateCategory(userID, models.Category{Name: "Rent"})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = transactions.CreateTransaction(userID, testIncome(300000, now))
	require.NoError(t, err)
	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionExpense, AmountCents: 120000, CategoryID: &rent.ID, OccurredAt: now})
	require.NoError(t, err)
	_, err = transactions.CreateTransaction(userID, models.Transaction{Type: models.TransactionExpense, AmountCents: 4500, CategoryID: &food.ID, OccurredAt: now})
	require.NoError(t, err)
	// Uncategorized expenses count in the totals but not the breakdown.
	_, err = transactions.CreateTransaction(userID, testExpense("", 1000))
	require.NoError(t, err)
	// Deleted entries count nowhere.
	gone, err := transactions.CreateTransaction(userID, testExpense("", 99999))
	require.NoError(t, err)
	require.NoError(t, transactions.DeleteTransaction(userID, gone.ID))

	summary, err := transactions.GetSummary(userID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(300000), summary.IncomeCents)
	assert.Equal(t, int64(125500), summary.ExpenseCents)
	assert.Equal(t, int64(174500), summary.NetCents)

	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Rent", summary.ByCategory[0].Name)
	assert.Equal(t, int64(120000), summary.ByCategory[0].TotalCents)
	assert.Equal(t, "Food", summary.ByCategory[1].Name)
	assert.Equal(t, int64(4500), summary.ByCategory[1].TotalCents)
	assert.Equal(t, "#123456", summary.ByCategory[1].Color)
}

func TestGetSummary_Window(t *testing.T) {
	_, users, _, _, transactions, _ := newTestServices(t)
	userID := mustRegister(t, users, "alice")

	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	_, err := transactions.CreateTransaction(userID, testIncome(1000, jan))
	require.NoError(t, err)
	_, err = transactions.CreateTransaction(userID, testIncome(2000, feb))
	require.NoError(t, err)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	summary, err := transactions.GetSummary(userID, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), summary.IncomeCents)

	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	summary, err = transactions.GetSummary(userID, nil, &to)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), summary.IncomeCents)

	empty, err := transactions.GetSummary("nobody", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, empty.IncomeCents)
	assert.Zero(t, empty.ExpenseCents)
	assert.Zero(t, empty.NetCents)
	assert.Empty(t, empty.ByCategory)
}
