package handlers

import (
	"net/http"

	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

// CategoryHandler handles HTTP requests related to categories.
type CategoryHandler struct {
	service services.CategoryServiceProvider
	tasks   services.TaskServiceProvider
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(service services.CategoryServiceProvider, tasks services.TaskServiceProvider) *CategoryHandler {
	return &CategoryHandler{service: service, tasks: tasks}
}

// CategoryPayload defines the structure for category create/update requests.
type CategoryPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// List handles the request to list the user's categories.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	deleted, err := parseDeletedParam(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	categories, err := h.service.ListCategories(userID, deleted)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", categories)
}

// Get handles the request to get a single category.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	category, err := h.service.GetCategoryByID(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", category)
}

// Create handles the request to create a new category.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	var payload CategoryPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	category, err := h.service.CreateCategory(userID, models.Category{
		Name:  payload.Name,
		Color: payload.Color,
		Icon:  payload.Icon,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "Category created", category)
}

// Update handles the request to update an existing category.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload CategoryPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	category, err := h.service.UpdateCategory(userID, id, models.Category{
		Name:  payload.Name,
		Color: payload.Color,
		Icon:  payload.Icon,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Category updated", category)
}

// Delete handles the request to soft-delete a category. Categories still in
// use by a live task or any transaction are rejected.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(userID, id); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Category moved to trash", nil)
}

// Restore handles the request to restore a soft-deleted category.
func (h *CategoryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	category, err := h.service.RestoreCategory(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Category restored", category)
}

// Statistics handles the request for one category's task statistics.
func (h *CategoryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Resolve through the category store first so an unknown or cross-tenant
	// category reads as not-found rather than as an empty result.
	if _, err := h.service.GetCategoryByID(userID, id); err != nil {
		respondError(w, err)
		return
	}

	stats, err := h.tasks.GetTaskStatistics(userID, services.StatsFilter{CategoryID: id})
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", stats)
}

// Compare handles the request for the cross-category statistics comparison.
func (h *CategoryHandler) Compare(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	results, err := h.tasks.CompareCategories(userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", results)
}
