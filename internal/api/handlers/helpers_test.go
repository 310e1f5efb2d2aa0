package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/models"
	"github.com/taskhive/taskhive-be/internal/services"
)

const testUserID = "11111111-1111-1111-1111-111111111111"

// withClaims simulates the JWT middleware for a single handler under test.
func withClaims(userID string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := &auth.Claims{UserID: userID, Username: "alice"}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), auth.UserClaimsKey, claims)))
	})
}

// doJSON runs one request through a chi router so URL parameters resolve.
func doJSON(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope unpacks the uniform response shape.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (bool, string, json.RawMessage) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Success, env.Message, env.Data
}

// mockTaskService is a func-field implementation of TaskServiceProvider.
type mockTaskService struct {
	CreateTaskFn        func(userID string, task models.Task) (models.Task, error)
	GetTaskByIDFn       func(userID, id string) (models.Task, error)
	ListTasksFn         func(userID string, filter services.TaskFilter) ([]models.Task, error)
	UpdateTaskFn        func(userID, id string, task models.Task) (models.Task, error)
	DeleteTaskFn        func(userID, id string) error
	RestoreTaskFn       func(userID, id string) (models.Task, error)
	GetTaskStatisticsFn func(userID string, filter services.StatsFilter) (models.TaskStatistics, error)
	CompareCategoriesFn func(userID string) ([]models.CategoryStatistics, error)
}

func (m *mockTaskService) CreateTask(userID string, task models.Task) (models.Task, error) {
	return m.CreateTaskFn(userID, task)
}

func (m *mockTaskService) GetTaskByID(userID, id string) (models.Task, error) {
	return m.GetTaskByIDFn(userID, id)
}

func (m *mockTaskService) ListTasks(userID string, filter services.TaskFilter) ([]models.Task, error) {
	return m.ListTasksFn(userID, filter)
}

func (m *mockTaskService) UpdateTask(userID, id string, task models.Task) (models.Task, error) {
	return m.UpdateTaskFn(userID, id, task)
}

func (m *mockTaskService) DeleteTask(userID, id string) error {
	return m.DeleteTaskFn(userID, id)
}

func (m *mockTaskService) RestoreTask(userID, id string) (models.Task, error) {
	return m.RestoreTaskFn(userID, id)
}

func (m *mockTaskService) GetTaskStatistics(userID string, filter services.StatsFilter) (models.TaskStatistics, error) {
	return m.GetTaskStatisticsFn(userID, filter)
}

func (m *mockTaskService) CompareCategories(userID string) ([]models.CategoryStatistics, error) {
	return m.CompareCategoriesFn(userID)
}

// mockUserService is a func-field implementation of UserServiceProvider.
type mockUserService struct {
	CreateUserFn       func(username, email, password string) (models.User, error)
	AuthenticateUserFn func(email, password string) (models.User, error)
	GetUserByIDFn      func(id string) (models.User, error)
	UpdateProfileFn    func(id, username, email, avatarURL string) (models.User, error)
	UpdatePasswordFn   func(id, currentPassword, newPassword string) error
	SendOTPFn          func(email string) error
	VerifyOTPFn        func(email, code string) error
	ResetPasswordFn    func(email, code, newPassword string) error
}

func (m *mockUserService) CreateUser(username, email, password string) (models.User, error) {
	return m.CreateUserFn(username, email, password)
}

func (m *mockUserService) AuthenticateUser(email, password string) (models.User, error) {
	return m.AuthenticateUserFn(email, password)
}

func (m *mockUserService) GetUserByID(id string) (models.User, error) {
	return m.GetUserByIDFn(id)
}

func (m *mockUserService) UpdateProfile(id, username, email, avatarURL string) (models.User, error) {
	return m.UpdateProfileFn(id, username, email, avatarURL)
}

func (m *mockUserService) UpdatePassword(id, currentPassword, newPassword string) error {
	return m.UpdatePasswordFn(id, currentPassword, newPassword)
}

func (m *mockUserService) SendOTP(email string) error {
	return m.SendOTPFn(email)
}

func (m *mockUserService) VerifyOTP(email, code string) error {
	return m.VerifyOTPFn(email, code)
}

func (m *mockUserService) ResetPassword(email, code, newPassword string) error {
	return m.ResetPasswordFn(email, code, newPassword)
}
