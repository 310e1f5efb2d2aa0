package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-be/internal/models"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Generate(models.User{ID: "u-1", Username: "alice"})
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewManager("secret-a").Generate(models.User{ID: "u-1", Username: "alice"})
	require.NoError(t, err)

	_, err = NewManager("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := NewManager("secret").Validate("not.a.token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := NewManager("test-secret")
	token, err := m.Generate(models.User{ID: "u-1", Username: "alice"})
	require.NoError(t, err)

	var gotClaims *Claims
	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		gotClaims = claims
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc123", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer garbage", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, gotClaims)
				assert.Equal(t, "u-1", gotClaims.UserID)
			} else {
				assert.Nil(t, gotClaims)
				assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}
