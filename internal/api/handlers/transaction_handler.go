package handlers

import (
	"net/http"
	"time"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

// TransactionHandler handles HTTP requests related to the expense ledger.
type TransactionHandler struct {
	service services.TransactionServiceProvider
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(service services.TransactionServiceProvider) *TransactionHandler {
	return &TransactionHandler{service: service}
}

// TransactionPayload defines the structure for transaction create/update requests.
type TransactionPayload struct {
	Type        string     `json:"type"`
	AmountCents int64      `json:"amountCents"`
	Description string     `json:"description"`
	CategoryID  *string    `json:"categoryId"`
	OccurredAt  *time.Time `json:"occurredAt"`
}

func (p TransactionPayload) toModel() models.Transaction {
	tx := models.Transaction{
		Type:        p.Type,
		AmountCents: p.AmountCents,
		Description: p.Description,
		CategoryID:  p.CategoryID,
	}
	if p.OccurredAt != nil {
		tx.OccurredAt = *p.OccurredAt
	}
	return tx
}

// List handles the request to list the user's transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	filter := services.TransactionFilter{
		Type:       r.URL.Query().Get("type"),
		CategoryID: r.URL.Query().Get("category"),
	}

	var err error
	if filter.Deleted, err = parseDeletedParam(r); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if filter.From, err = parseDateParam(r, "startDate", false); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if filter.To, err = parseDateParam(r, "endDate", true); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	transactions, err := h.service.ListTransactions(userID, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", transactions)
}

// Get handles the request to get a single transaction.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tx, err := h.service.GetTransactionByID(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", tx)
}

// Create handles the request to record a new transaction.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	var payload TransactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	tx, err := h.service.CreateTransaction(userID, payload.toModel())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "Transaction recorded", tx)
}

// Update handles the request to update an existing transaction.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload TransactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	tx, err := h.service.UpdateTransaction(userID, id, payload.toModel())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Transaction updated", tx)
}

// Delete handles the request to soft-delete a transaction.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTransaction(userID, id); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Transaction moved to trash", nil)
}

// Restore handles the request to restore a soft-deleted transaction.
func (h *TransactionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	tx, err := h.service.RestoreTransaction(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Transaction restored", tx)
}

// Summary handles the request for the user's ledger summary.
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	from, err := parseDateParam(r, "startDate", false)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	to, err := parseDateParam(r, "endDate", true)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	summary, err := h.service.GetSummary(userID, from, to)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", summary)
}
