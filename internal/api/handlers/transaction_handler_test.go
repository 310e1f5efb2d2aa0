package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

// mockTransactionService is a func-field implementation of TransactionServiceProvider.
type mockTransactionService struct {
	CreateTransactionFn  func(userID string, tx models.Transaction) (models.Transaction, error)
	GetTransactionByIDFn func(userID, id string) (models.Transaction, error)
	ListTransactionsFn   func(userID string, filter services.TransactionFilter) ([]models.Transaction, error)
	UpdateTransactionFn  func(userID, id string, tx models.Transaction) (models.Transaction, error)
	DeleteTransactionFn  func(userID, id string) error
	RestoreTransactionFn func(userID, id string) (models.Transaction, error)
	GetSummaryFn         func(userID string, from, to *time.Time) (models.TransactionSummary, error)
}

func (m *mockTransactionService) CreateTransaction(userID string, tx models.Transaction) (models.Transaction, error) {
	return m.CreateTransactionFn(userID, tx)
}

func (m *mockTransactionService) GetTransactionByID(userID, id string) (models.Transaction, error) {
	return m.GetTransactionByIDFn(userID, id)
}

func (m *mockTransactionService) ListTransactions(userID string, filter services.TransactionFilter) ([]models.Transaction, error) {
	return m.ListTransactionsFn(userID, filter)
}

func (m *mockTransactionService) UpdateTransaction(userID, id string, tx models.Transaction) (models.Transaction, error) {
	return m.UpdateTransactionFn(userID, id, tx)
}

func (m *mockTransactionService) DeleteTransaction(userID, id string) error {
	return m.DeleteTransactionFn(userID, id)
}

func (m *mockTransactionService) RestoreTransaction(userID, id string) (models.Transaction, error) {
	return m.RestoreTransactionFn(userID, id)
}

func (m *mockTransactionService) GetSummary(userID string, from, to *time.Time) (models.TransactionSummary, error) {
	return m.GetSummaryFn(userID, from, to)
}

func transactionRouter(svc *mockTransactionService) chi.Router {
	h := NewTransactionHandler(svc)
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/transactions", withClaims(testUserID, h.List))
	r.Method(http.MethodPost, "/transactions", withClaims(testUserID, h.Create))
	r.Method(http.MethodGet, "/transactions/summary", withClaims(testUserID, h.Summary))
	r.Method(http.MethodGet, "/transactions/{id}", withClaims(testUserID, h.Get))
	r.Method(http.MethodPut, "/transactions/{id}", withClaims(testUserID, h.Update))
	r.Method(http.MethodDelete, "/transactions/{id}", withClaims(testUserID, h.Delete))
	r.Method(http.MethodPut, "/transactions/{id}/restore", withClaims(testUserID, h.Restore))
	return r
}

func TestTransactionCreate(t *testing.T) {
	svc := &mockTransactionService{
		CreateTransactionFn: func(userID string, tx models.Transaction) (models.Transaction, error) {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, models.TransactionExpense, tx.Type)
			assert.Equal(t, int64(4500), tx.AmountCents)
			assert.Equal(t, 2026, tx.OccurredAt.Year())
			tx.ID = uuid.New().String()
			return tx, nil
		},
	}

	rec := doJSON(t, transactionRouter(svc), http.MethodPost, "/transactions",
		`{"type":"expense","amountCents":4500,"description":"groceries","occurredAt":"2026-03-01T12:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	success, message, _ := decodeEnvelope(t, rec)
	assert.True(t, success)
	assert.Equal(t, "Transaction recorded", message)
}

func TestTransactionList_FilterParsing(t *testing.T) {
	var got services.TransactionFilter
	svc := &mockTransactionService{
		ListTransactionsFn: func(userID string, filter services.TransactionFilter) ([]models.Transaction, error) {
			got = filter
			return []models.Transaction{}, nil
		},
	}

	rec := doJSON(t, transactionRouter(svc), http.MethodGet,
		"/transactions?type=expense&category=c1&startDate=2026-02-01&endDate=2026-02-28", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, models.TransactionExpense, got.Type)
	assert.Equal(t, "c1", got.CategoryID)
	require.NotNil(t, got.From)
	require.NotNil(t, got.To)
	assert.Equal(t, 28, got.To.Day())
}

func TestTransactionSummary(t *testing.T) {
	svc := &mockTransactionService{
		GetSummaryFn: func(userID string, from, to *time.Time) (models.TransactionSummary, error) {
			assert.Nil(t, from)
			assert.Nil(t, to)
			return models.TransactionSummary{IncomeCents: 1000, ExpenseCents: 400, NetCents: 600}, nil
		},
	}

	rec := doJSON(t, transactionRouter(svc), http.MethodGet, "/transactions/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, _, data := decodeEnvelope(t, rec)
	assert.Contains(t, string(data), `"netCents":600`)
}

func TestTransactionSummary_BadDateIs400(t *testing.T) {
	svc := &mockTransactionService{
		GetSummaryFn: func(string, *time.Time, *time.Time) (models.TransactionSummary, error) {
			t.Fatal("service must not be called")
			return models.TransactionSummary{}, nil
		},
	}

	rec := doJSON(t, transactionRouter(svc), http.MethodGet, "/transactions/summary?startDate=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
