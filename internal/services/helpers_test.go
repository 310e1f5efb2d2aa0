package services

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/database"
)

// newTestDB opens an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// sentMail is one captured delivery.
type sentMail struct {
	To      string
	Subject string
	Body    string
}

// fakeSender records deliveries and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	Sent []sentMail
	Fail error
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.Sent = append(f.Sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.Sent)
	return f.Sent[len(f.Sent)-1]
}

var otpCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// extractOTP pulls the 6-digit code out of a captured reset email.
func extractOTP(t *testing.T, body string) string {
	t.Helper()
	match := otpCodePattern.FindStringSubmatch(body)
	require.NotNil(t, match, "no 6-digit code in mail body: %s", body)
	return match[1]
}

// newTestServices wires the full service graph over one in-memory database.
func newTestServices(t *testing.T) (*sql.DB, *UserService, *TaskService, *CategoryService, *TransactionService, *fakeSender) {
	t.Helper()
	db := newTestDB(t)
	sender := &fakeSender{}
	events := NewEventService(db, nil)
	users := NewUserService(db, sender, events)
	tasks := NewTaskService(db, events)
	categories := NewCategoryService(db, events)
	transactions := NewTransactionService(db, events)
	return db, users, tasks, categories, transactions, sender
}

// mustRegister creates a user and returns its ID.
func mustRegister(t *testing.T, users *UserService, name string) string {
	t.Helper()
	user, err := users.CreateUser(name, fmt.Sprintf("%s@example.com", name), "secret123")
	require.NoError(t, err)
	return user.ID
}
