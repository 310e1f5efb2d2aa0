package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

// TaskHandler handles HTTP requests related to tasks.
type TaskHandler struct {
	service services.TaskServiceProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider) *TaskHandler {
	return &TaskHandler{service: service}
}

// TaskPayload defines the structure for task create/update requests.
type TaskPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CategoryID  *string    `json:"categoryId"`
	DueDate     *time.Time `json:"dueDate"`
	ReminderAt  *time.Time `json:"reminderAt"`
}

func (p TaskPayload) toModel() models.Task {
	return models.Task{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.Priority,
		Status:      p.Status,
		CategoryID:  p.CategoryID,
		DueDate:     p.DueDate,
		ReminderAt:  p.ReminderAt,
	}
}

// List handles the request to list the user's tasks with optional filters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	filter := services.TaskFilter{
		Status:     r.URL.Query().Get("status"),
		Priority:   r.URL.Query().Get("priority"),
		CategoryID: r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
	}

	var err error
	if filter.Deleted, err = parseDeletedParam(r); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if filter.CreatedFrom, err = parseDateParam(r, "startDate", false); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if filter.CreatedTo, err = parseDateParam(r, "endDate", true); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	tasks, err := h.service.ListTasks(userID, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", tasks)
}

// Get handles the request to get a single task.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := h.service.GetTaskByID(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", task)
}

// Create handles the request to create a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	var payload TaskPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	task, err := h.service.CreateTask(userID, payload.toModel())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "Task created", task)
}

// Update handles the request to update an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload TaskPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	task, err := h.service.UpdateTask(userID, id, payload.toModel())
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Task updated", task)
}

// Delete handles the request to soft-delete a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(userID, id); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Task moved to trash", nil)
}

// Restore handles the request to restore a soft-deleted task.
func (h *TaskHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	task, err := h.service.RestoreTask(userID, id)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Task restored", task)
}

// Statistics handles the request for the user's task statistics, optionally
// scoped by category and creation-date window.
func (h *TaskHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	filter := services.StatsFilter{CategoryID: r.URL.Query().Get("category")}

	var err error
	if filter.From, err = parseDateParam(r, "startDate", false); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if filter.To, err = parseDateParam(r, "endDate", true); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	stats, err := h.service.GetTaskStatistics(userID, filter)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", stats)
}

// mustUserID pulls the authenticated user's ID from the request context. The
// JWT middleware guarantees presence on protected routes.
func mustUserID(r *http.Request) string {
	claims, _ := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// pathID validates the {id} URL parameter. Malformed identifiers answer 400,
// kept distinct from the 404 a missing row produces.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, fmt.Errorf("%w: %s", services.ErrInvalidID, id))
		return "", false
	}
	return id, true
}

// parseDeletedParam reads the optional deleted=true|false override for the
// soft-delete read filter.
func parseDeletedParam(r *http.Request) (*bool, error) {
	switch value := r.URL.Query().Get("deleted"); value {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, fmt.Errorf("deleted must be true or false")
	}
}

// parseDateParam reads an optional YYYY-MM-DD query parameter. End dates are
// inclusive: they extend through the last millisecond of that day.
func parseDateParam(r *http.Request, name string, endOfDay bool) (*time.Time, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%s must be a YYYY-MM-DD date", name)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return &t, nil
}
