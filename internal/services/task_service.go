package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive-be/internal/models"
)

// MaxReminderAttempts bounds delivery retries per task. Once reached the task
// is dead-lettered: it drops out of the poll query and an event records it.
const MaxReminderAttempts = 5

// reminderBatchSize caps how many due reminders one poll cycle picks up.
const reminderBatchSize = 50

// TaskFilter narrows ListTasks. Zero values mean "no constraint"; Deleted nil
// defaults to hiding soft-deleted rows.
type TaskFilter struct {
	Status      string
	Priority    string
	CategoryID  string
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Deleted     *bool
}

// StatsFilter narrows GetTaskStatistics to a category and/or creation window.
type StatsFilter struct {
	CategoryID string
	From       *time.Time
	To         *time.Time
}

// TaskServiceProvider defines the interface for task services.
type TaskServiceProvider interface {
	CreateTask(userID string, task models.Task) (models.Task, error)
	GetTaskByID(userID, id string) (models.Task, error)
	ListTasks(userID string, filter TaskFilter) ([]models.Task, error)
	UpdateTask(userID, id string, task models.Task) (models.Task, error)
	DeleteTask(userID, id string) error
	RestoreTask(userID, id string) (models.Task, error)
	GetTaskStatistics(userID string, filter StatsFilter) (models.TaskStatistics, error)
	CompareCategories(userID string) ([]models.CategoryStatistics, error)
}

// TaskService provides business logic for task management. Every query is
// scoped to the owning user.
type TaskService struct {
	db     *sql.DB
	events EventServiceProvider
}

// NewTaskService creates a new TaskService.
func NewTaskService(db *sql.DB, events EventServiceProvider) *TaskService {
	return &TaskService{db: db, events: events}
}

const taskColumns = `t.id, t.user_id, t.category_id, t.title, t.description, t.priority, t.status,
	t.due_date, t.reminder_at, t.reminder_sent, t.reminder_attempts,
	t.deleted, t.deleted_at, t.created_at, t.updated_at, c.name`

const taskFrom = ` FROM tasks t LEFT JOIN categories c ON c.id = t.category_id`

// CreateTask creates a new task for the user.
func (s *TaskService) CreateTask(userID string, task models.Task) (models.Task, error) {
	if err := s.validateTask(userID, &task); err != nil {
		return models.Task{}, err
	}

	now := time.Now().UTC()
	task.ID = uuid.New().String()
	task.UserID = userID
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO tasks (id, user_id, category_id, title, description, priority, status, due_date, reminder_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.CategoryID, task.Title, task.Description, task.Priority, task.Status,
		utcOrNil(task.DueDate), utcOrNil(task.ReminderAt), task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}

	s.events.CreateEvent("task.create", "info", fmt.Sprintf("Task '%s' created.", task.Title), &userID)
	return s.GetTaskByID(userID, task.ID)
}

// GetTaskByID retrieves one task regardless of its deleted flag, so the trash
// view can show it.
func (s *TaskService) GetTaskByID(userID, id string) (models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+taskFrom+" WHERE t.id = ? AND t.user_id = ?", id, userID)
	return scanTask(row)
}

// ListTasks lists the user's tasks. All filters, including the substring
// search over title/description/category name, are pushed into the SQL
// predicate so results are correct regardless of set size.
func (s *TaskService) ListTasks(userID string, filter TaskFilter) ([]models.Task, error) {
	query := "SELECT " + taskColumns + taskFrom + " WHERE t.user_id = ?"
	args := []interface{}{userID}

	wantDeleted := filter.Deleted != nil && *filter.Deleted
	query += " AND t.deleted = ?"
	args = append(args, wantDeleted)

	if filter.Status != "" {
		query += " AND t.status = ?"
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += " AND t.priority = ?"
		args = append(args, filter.Priority)
	}
	if filter.CategoryID != "" {
		query += " AND t.category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.CreatedFrom != nil {
		query += " AND t.created_at >= ?"
		args = append(args, filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		query += " AND t.created_at <= ?"
		args = append(args, filter.CreatedTo.UTC())
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += " AND (LOWER(t.title) LIKE ? OR LOWER(t.description) LIKE ? OR LOWER(COALESCE(c.name, '')) LIKE ?)"
		args = append(args, pattern, pattern, pattern)
	}

	query += " ORDER BY t.created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTask replaces a task's editable fields. Changing the reminder time
// re-arms delivery by clearing the sent flag and attempt counter.
func (s *TaskService) UpdateTask(userID, id string, task models.Task) (models.Task, error) {
	existing, err := s.GetTaskByID(userID, id)
	if err != nil {
		return models.Task{}, err
	}
	if err := s.validateTask(userID, &task); err != nil {
		return models.Task{}, err
	}

	reminderChanged := !equalTimePtr(existing.ReminderAt, task.ReminderAt)
	reminderSent := existing.ReminderSent
	reminderAttempts := existing.ReminderAttempts
	if reminderChanged {
		reminderSent = false
		reminderAttempts = 0
	}

	_, err = s.db.Exec(`UPDATE tasks SET category_id = ?, title = ?, description = ?, priority = ?, status = ?,
		due_date = ?, reminder_at = ?, reminder_sent = ?, reminder_attempts = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		task.CategoryID, task.Title, task.Description, task.Priority, task.Status,
		utcOrNil(task.DueDate), utcOrNil(task.ReminderAt), reminderSent, reminderAttempts,
		time.Now().UTC(), id, userID)
	if err != nil {
		return models.Task{}, err
	}

	s.events.CreateEvent("task.update", "info", fmt.Sprintf("Task '%s' updated.", task.Title), &userID)
	return s.GetTaskByID(userID, id)
}

// DeleteTask soft-deletes a task.
func (s *TaskService) DeleteTask(userID, id string) error {
	task, err := s.GetTaskByID(userID, id)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("UPDATE tasks SET deleted = 1, deleted_at = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), time.Now().UTC(), id, userID)
	if err == nil {
		s.events.CreateEvent("task.delete", "warn", fmt.Sprintf("Task '%s' moved to trash.", task.Title), &userID)
	}
	return err
}

// RestoreTask clears the deleted flag and timestamp, returning the task to
// its pre-deletion visible state.
func (s *TaskService) RestoreTask(userID, id string) (models.Task, error) {
	res, err := s.db.Exec("UPDATE tasks SET deleted = 0, deleted_at = NULL, updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), id, userID)
	if err != nil {
		return models.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Task{}, fmt.Errorf("%w: task", ErrNotFound)
	}

	task, err := s.GetTaskByID(userID, id)
	if err == nil {
		s.events.CreateEvent("task.restore", "info", fmt.Sprintf("Task '%s' restored.", task.Title), &userID)
	}
	return task, err
}

// GetTaskStatistics aggregates counts over the user's tasks. Soft-deleted
// rows are kept in the totals for historical accuracy and reported via
// DeletedCount; the overdue count uses the shared OverdueCondition, which
// excludes them.
func (s *TaskService) GetTaskStatistics(userID string, filter StatsFilter) (models.TaskStatistics, error) {
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'Not Started' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'In Progress' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'Cancelled' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN priority = 'Low' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN priority = 'Medium' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN priority = 'High' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN deleted = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN ` + models.OverdueCondition("") + ` THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE user_id = ?`
	args := []interface{}{time.Now().UTC(), userID}

	if filter.CategoryID != "" {
		query += " AND category_id = ?"
		args = append(args, filter.CategoryID)
	}
	if filter.From != nil {
		query += " AND created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		query += " AND created_at <= ?"
		args = append(args, filter.To.UTC())
	}

	var stats models.TaskStatistics
	var notStarted, inProgress, completed, cancelled, low, medium, high int
	err := s.db.QueryRow(query, args...).Scan(&stats.Total,
		&notStarted, &inProgress, &completed, &cancelled,
		&low, &medium, &high,
		&stats.DeletedCount, &stats.Overdue)
	if err != nil {
		return models.TaskStatistics{}, err
	}

	stats.ByStatus = map[string]int{
		models.StatusNotStarted: notStarted,
		models.StatusInProgress: inProgress,
		models.StatusCompleted:  completed,
		models.StatusCancelled:  cancelled,
	}
	stats.ByPriority = map[string]int{
		models.PriorityLow:    low,
		models.PriorityMedium: medium,
		models.PriorityHigh:   high,
	}
	stats.CompletionRate = CompletionRate(completed, stats.Total)
	return stats, nil
}

// CompareCategories computes the same metrics grouped by category, with each
// category's display metadata joined in, sorted by total task count.
func (s *TaskService) CompareCategories(userID string) ([]models.CategoryStatistics, error) {
	query := `SELECT c.id, c.name, c.color, c.icon,
		COUNT(t.id),
		COALESCE(SUM(CASE WHEN t.status = 'Not Started' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'In Progress' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'Completed' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.status = 'Cancelled' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.priority = 'Low' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.priority = 'Medium' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.priority = 'High' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN t.deleted = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN ` + models.OverdueCondition("t") + ` THEN 1 ELSE 0 END), 0)
		FROM categories c
		LEFT JOIN tasks t ON t.category_id = c.id AND t.user_id = c.user_id
		WHERE c.user_id = ? AND c.deleted = 0
		GROUP BY c.id, c.name, c.color, c.icon
		ORDER BY COUNT(t.id) DESC, c.name ASC`

	rows, err := s.db.Query(query, time.Now().UTC(), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.CategoryStatistics
	for rows.Next() {
		var cs models.CategoryStatistics
		var notStarted, inProgress, completed, cancelled, low, medium, high int
		err := rows.Scan(&cs.CategoryID, &cs.Name, &cs.Color, &cs.Icon, &cs.Total,
			&notStarted, &inProgress, &completed, &cancelled,
			&low, &medium, &high,
			&cs.DeletedCount, &cs.Overdue)
		if err != nil {
			return nil, err
		}
		cs.ByStatus = map[string]int{
			models.StatusNotStarted: notStarted,
			models.StatusInProgress: inProgress,
			models.StatusCompleted:  completed,
			models.StatusCancelled:  cancelled,
		}
		cs.ByPriority = map[string]int{
			models.PriorityLow:    low,
			models.PriorityMedium: medium,
			models.PriorityHigh:   high,
		}
		cs.CompletionRate = CompletionRate(completed, cs.Total)
		results = append(results, cs)
	}
	return results, rows.Err()
}

// DueReminders returns up to limit tasks whose reminder is due and still
// undelivered, joined with the owner's contact address. Dead-lettered tasks
// (attempt cap reached) are excluded.
func (s *TaskService) DueReminders(limit int) ([]models.Reminder, error) {
	if limit <= 0 || limit > reminderBatchSize {
		limit = reminderBatchSize
	}
	rows, err := s.db.Query(`SELECT t.id, t.user_id, t.title, t.due_date, t.reminder_at, t.reminder_attempts, u.email, u.username
		FROM tasks t
		JOIN users u ON u.id = t.user_id
		WHERE t.reminder_at IS NOT NULL AND t.reminder_at <= ?
		  AND t.reminder_sent = 0
		  AND t.reminder_attempts < ?
		  AND t.status NOT IN ('Completed', 'Cancelled')
		  AND t.deleted = 0
		ORDER BY t.reminder_at ASC
		LIMIT ?`, time.Now().UTC(), MaxReminderAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		var dueDate sql.NullTime
		if err := rows.Scan(&r.TaskID, &r.UserID, &r.Title, &dueDate, &r.ReminderAt, &r.Attempts, &r.Email, &r.Username); err != nil {
			return nil, err
		}
		if dueDate.Valid {
			t := dueDate.Time
			r.DueDate = &t
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// MarkReminderSent flips the sent flag after a confirmed delivery, excluding
// the task from subsequent polls.
func (s *TaskService) MarkReminderSent(taskID string) error {
	_, err := s.db.Exec("UPDATE tasks SET reminder_sent = 1 WHERE id = ?", taskID)
	return err
}

// RecordReminderFailure bumps the attempt counter and returns the new count,
// so the dispatcher can dead-letter at the cap.
func (s *TaskService) RecordReminderFailure(taskID string) (int, error) {
	if _, err := s.db.Exec("UPDATE tasks SET reminder_attempts = reminder_attempts + 1 WHERE id = ?", taskID); err != nil {
		return 0, err
	}
	var attempts int
	err := s.db.QueryRow("SELECT reminder_attempts FROM tasks WHERE id = ?", taskID).Scan(&attempts)
	return attempts, err
}

// CompletionRate is round(completed/total*100), and exactly 0 for an empty set.
func CompletionRate(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// validateTask checks field values and the cross-tenant category invariant:
// a task may only reference a live category owned by the same user.
func (s *TaskService) validateTask(userID string, task *models.Task) error {
	task.Title = strings.TrimSpace(task.Title)
	var problems []string
	if task.Title == "" {
		problems = append(problems, "title is required")
	}
	if len(task.Title) > 200 {
		problems = append(problems, "title must be at most 200 characters")
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	} else if !models.ValidPriority(task.Priority) {
		problems = append(problems, "priority must be Low, Medium or High")
	}
	if task.Status == "" {
		task.Status = models.StatusNotStarted
	} else if !models.ValidStatus(task.Status) {
		problems = append(problems, "status must be Not Started, In Progress, Completed or Cancelled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, ", "))
	}

	if task.CategoryID != nil && *task.CategoryID != "" {
		var deleted bool
		err := s.db.QueryRow("SELECT deleted FROM categories WHERE id = ? AND user_id = ?", *task.CategoryID, userID).Scan(&deleted)
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
		task.CategoryID = nil
	}
	return nil
}

func scanTask(row rowScanner) (models.Task, error) {
	var task models.Task
	var categoryID sql.NullString
	var dueDate, reminderAt, deletedAt sql.NullTime
	var categoryName sql.NullString

	err := row.Scan(&task.ID, &task.UserID, &categoryID, &task.Title, &task.Description,
		&task.Priority, &task.Status, &dueDate, &reminderAt, &task.ReminderSent, &task.ReminderAttempts,
		&task.Deleted, &deletedAt, &task.CreatedAt, &task.UpdatedAt, &categoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, fmt.Errorf("%w: task", ErrNotFound)
		}
		return models.Task{}, err
	}

	if categoryID.Valid {
		task.CategoryID = &categoryID.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if reminderAt.Valid {
		t := reminderAt.Time
		task.ReminderAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		task.DeletedAt = &t
	}
	if categoryName.Valid {
		task.CategoryName = &categoryName.String
	}
	task.Overdue = task.IsOverdue(time.Now().UTC())
	return task, nil
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
