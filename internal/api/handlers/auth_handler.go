package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/taskhive/taskhive-be/internal/auth"
	"github.com/taskhive/taskhive-be/internal/services"
)

// AuthHandler handles registration, login, profile and the password-reset flow.
type AuthHandler struct {
	service services.UserServiceProvider
	jwt     *auth.Manager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider, jwt *auth.Manager) *AuthHandler {
	return &AuthHandler{service: service, jwt: jwt}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.service.CreateUser(payload.Username, payload.Email, payload.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		respondError(w, err)
		return
	}

	respond(w, http.StatusCreated, "Registered", map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Login handles user authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.service.AuthenticateUser(payload.Email, payload.Password)
	if err != nil {
		log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		respondError(w, err)
		return
	}

	token, err := h.jwt.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Logged in", map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetMe retrieves the currently authenticated user from the token.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, services.ErrUnauthorized)
		return
	}

	user, err := h.service.GetUserByID(claims.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "", user)
}

// ProfilePayload defines the structure for profile updates.
type ProfilePayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// UpdateProfile handles updating the authenticated user's profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, services.ErrUnauthorized)
		return
	}

	var payload ProfilePayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	user, err := h.service.UpdateProfile(claims.UserID, payload.Username, payload.Email, payload.AvatarURL)
	if err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Profile updated", user)
}

// ChangePassword handles changing the authenticated user's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, services.ErrUnauthorized)
		return
	}

	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	if err := h.service.UpdatePassword(claims.UserID, payload.CurrentPassword, payload.NewPassword); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Password updated successfully", nil)
}

// OTPPayload carries the email for send/resend and additionally the code for
// verify and reset.
type OTPPayload struct {
	Email       string `json:"email"`
	Code        string `json:"code,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
}

// SendOTP issues a password-reset code. The response is identical whether or
// not the email is registered.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var payload OTPPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		respondBadRequest(w, "Email is required")
		return
	}

	if err := h.service.SendOTP(payload.Email); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "If that email is registered, a verification code has been sent", nil)
}

// ResendOTP re-issues a code, overwriting any active challenge.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	h.SendOTP(w, r)
}

// VerifyOTP confirms a submitted code, arming the reset step.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var payload OTPPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if payload.Email == "" || payload.Code == "" {
		respondBadRequest(w, "Email and code are required")
		return
	}

	if err := h.service.VerifyOTP(payload.Email, payload.Code); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Code verified", nil)
}

// ResetPassword consumes a verified code and sets the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload OTPPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}
	if payload.Email == "" || payload.Code == "" {
		respondBadRequest(w, "Email and code are required")
		return
	}

	if err := h.service.ResetPassword(payload.Email, payload.Code, payload.NewPassword); err != nil {
		respondError(w, err)
		return
	}

	respond(w, http.StatusOK, "Password has been reset", nil)
}
