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

// CategoryServiceProvider defines the interface for category services.
type CategoryServiceProvider interface {
	CreateCategory(userID string, category models.Category) (models.Category, error)
	GetCategoryByID(userID, id string) (models.Category, error)
	ListCategories(userID string, deleted *bool) ([]models.Category, error)
	UpdateCategory(userID, id string, category models.Category) (models.Category, error)
	DeleteCategory(userID, id string) error
	RestoreCategory(userID, id string) (models.Category, error)
}

// CategoryService provides business logic for category management. Every
// query is scoped to the owning user; rows owned by someone else read as
// not-found.
type CategoryService struct {
	db     *sql.DB
	events EventServiceProvider
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(db *sql.DB, events EventServiceProvider) *CategoryService {
	return &CategoryService{db: db, events: events}
}

const categoryColumns = "id, user_id, name, color, icon, deleted, deleted_at, created_at"

// CreateCategory creates a new category for the user.
func (s *CategoryService) CreateCategory(userID string, category models.Category) (models.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return models.Category{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	category.ID = uuid.New().String()
	category.UserID = userID
	category.CreatedAt = time.Now().UTC()
	if category.Color == "" {
		category.Color = "#6b7280"
	}
	if category.Icon == "" {
		category.Icon = "folder"
	}

	_, err := s.db.Exec("INSERT INTO categories (id, user_id, name, color, icon, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		category.ID, category.UserID, category.Name, category.Color, category.Icon, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Category{}, fmt.Errorf("%w: a category named '%s' already exists", ErrConflict, category.Name)
		}
		return models.Category{}, err
	}

	s.events.CreateEvent("category.create", "info", fmt.Sprintf("Category '%s' created.", category.Name), &userID)
	return s.GetCategoryByID(userID, category.ID)
}

// GetCategoryByID retrieves one category, regardless of its deleted flag so
// the trash view can show it.
func (s *CategoryService) GetCategoryByID(userID, id string) (models.Category, error) {
	row := s.db.QueryRow("SELECT "+categoryColumns+" FROM categories WHERE id = ? AND user_id = ?", id, userID)
	return scanCategory(row)
}

// ListCategories lists the user's categories. Soft-deleted rows are hidden
// unless deleted explicitly asks for them.
func (s *CategoryService) ListCategories(userID string, deleted *bool) ([]models.Category, error) {
	query := "SELECT " + categoryColumns + " FROM categories WHERE user_id = ?"
	args := []interface{}{userID}
	// Default read path hides soft-deleted rows; the trash view opts in.
	wantDeleted := deleted != nil && *deleted
	query += " AND deleted = ?"
	args = append(args, wantDeleted)
	query += " ORDER BY name ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// UpdateCategory updates a category's display fields.
func (s *CategoryService) UpdateCategory(userID, id string, category models.Category) (models.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return models.Category{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	res, err := s.db.Exec("UPDATE categories SET name = ?, color = ?, icon = ? WHERE id = ? AND user_id = ?",
		category.Name, category.Color, category.Icon, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Category{}, fmt.Errorf("%w: a category named '%s' already exists", ErrConflict, category.Name)
		}
		return models.Category{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Category{}, fmt.Errorf("%w: category", ErrNotFound)
	}
	return s.GetCategoryByID(userID, id)
}

// DeleteCategory soft-deletes a category. A category still referenced by a
// live task or any transaction cannot be deleted.
func (s *CategoryService) DeleteCategory(userID, id string) error {
	category, err := s.GetCategoryByID(userID, id)
	if err != nil {
		return err
	}

	var inUse int
	err = s.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM tasks WHERE category_id = ? AND deleted = 0) +
		(SELECT COUNT(*) FROM transactions WHERE category_id = ?)`, id, id).Scan(&inUse)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return fmt.Errorf("%w: category '%s' is still in use", ErrConflict, category.Name)
	}

	_, err = s.db.Exec("UPDATE categories SET deleted = 1, deleted_at = ? WHERE id = ? AND user_id = ?",
		time.Now().UTC(), id, userID)
	if err == nil {
		s.events.CreateEvent("category.delete", "warn", fmt.Sprintf("Category '%s' moved to trash.", category.Name), &userID)
	}
	return err
}

// RestoreCategory clears the deleted flag and timestamp.
func (s *CategoryService) RestoreCategory(userID, id string) (models.Category, error) {
	res, err := s.db.Exec("UPDATE categories SET deleted = 0, deleted_at = NULL WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return models.Category{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Category{}, fmt.Errorf("%w: category", ErrNotFound)
	}

	category, err := s.GetCategoryByID(userID, id)
	if err == nil {
		s.events.CreateEvent("category.restore", "info", fmt.Sprintf("Category '%s' restored.", category.Name), &userID)
	}
	return category, err
}

// rowScanner lets scanCategory work for both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row rowScanner) (models.Category, error) {
	var category models.Category
	var deletedAt sql.NullTime
	err := row.Scan(&category.ID, &category.UserID, &category.Name, &category.Color, &category.Icon,
		&category.Deleted, &deletedAt, &category.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Category{}, fmt.Errorf("%w: category", ErrNotFound)
		}
		return models.Category{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		category.DeletedAt = &t
	}
	return category, nil
}
