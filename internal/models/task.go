package models

import "time"

// Task priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Task statuses.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusCancelled  = "Cancelled"
)

// OverdueCondition returns the single SQL definition of "overdue": the due
// date has passed while the task is still active. Bound parameter: now.
// Every query that reports overdue (list filter, detail badge, aggregates)
// must use this fragment so the predicate cannot drift between views. The
// alias qualifies column names in joined queries; pass "" for plain ones.
func OverdueCondition(alias string) string {
	if alias != "" {
		alias += "."
	}
	return "(" + alias + "due_date IS NOT NULL AND " + alias + "due_date < ? AND " +
		alias + "status NOT IN ('Completed', 'Cancelled') AND " + alias + "deleted = 0)"
}

// Task represents a single item on a user's board.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CategoryID  *string    `json:"categoryId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Overdue     bool       `json:"overdue"`

	ReminderAt       *time.Time `json:"reminderAt,omitempty"`
	ReminderSent     bool       `json:"reminderSent"`
	ReminderAttempts int        `json:"-"`

	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// Joined category display metadata, populated on reads.
	CategoryName *string `json:"categoryName,omitempty"`
}

// IsOverdue is the Go mirror of OverdueCondition.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) &&
		t.Status != StatusCompleted && t.Status != StatusCancelled &&
		!t.Deleted
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s string) bool {
	return s == StatusNotStarted || s == StatusInProgress || s == StatusCompleted || s == StatusCancelled
}

// Reminder is the slice of a task the dispatcher needs to deliver a
// notification: the task, when it was due, and the owner's contact address.
type Reminder struct {
	TaskID     string     `json:"taskId"`
	UserID     string     `json:"userId"`
	Title      string     `json:"title"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
	ReminderAt time.Time  `json:"reminderAt"`
	Email      string     `json:"-"`
	Username   string     `json:"-"`
	Attempts   int        `json:"-"`
}

// TaskStatistics aggregates counts over a user's tasks. Soft-deleted rows
// stay in the totals (they happened) and are surfaced via DeletedCount;
// overdue explicitly excludes them.
type TaskStatistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	Overdue        int            `json:"overdue"`
	DeletedCount   int            `json:"deletedCount"`
	CompletionRate int            `json:"completionRate"`
}

// CategoryStatistics is one row of the category comparison: the per-category
// metrics plus the category's display metadata.
type CategoryStatistics struct {
	CategoryID   string `json:"categoryId"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	Icon         string `json:"icon"`
	TaskStatistics
}
