package services

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskhive/taskhive-be/internal/mail"
	"github.com/taskhive/taskhive-be/internal/models"
)

const otpTTL = 10 * time.Minute

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	CreateUser(username, email, password string) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	GetUserByID(id string) (models.User, error)
	UpdateProfile(id, username, email, avatarURL string) (models.User, error)
	UpdatePassword(id, currentPassword, newPassword string) error

	SendOTP(email string) error
	VerifyOTP(email, code string) error
	ResetPassword(email, code, newPassword string) error
}

// UserService provides business logic for accounts and the password-reset flow.
type UserService struct {
	db     *sql.DB
	mailer mail.Sender
	events EventServiceProvider
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, mailer mail.Sender, events EventServiceProvider) *UserService {
	return &UserService{db: db, mailer: mailer, events: events}
}

// CreateUser registers a new account, hashing the password.
func (s *UserService) CreateUser(username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if len(username) < 3 || len(username) > 20 {
		return models.User{}, fmt.Errorf("%w: username must be 3-20 characters", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return models.User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < 6 {
		return models.User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	_, err = s.db.Exec("INSERT INTO users(id, username, email, password_hash, created_at) VALUES(?, ?, ?, ?, ?)",
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: username or email already in use", ErrConflict)
		}
		return models.User{}, err
	}

	s.events.CreateEvent("auth.register", "info", fmt.Sprintf("User '%s' registered.", user.Username), &user.ID)

	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser verifies a user's credentials.
func (s *UserService) AuthenticateUser(email, password string) (models.User, error) {
	user, err := s.getUserByEmail(normalizeEmail(email))
	if err != nil {
		return models.User{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	s.events.CreateEvent("auth.login", "info", fmt.Sprintf("User '%s' logged in.", user.Username), &user.ID)

	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(id string) (models.User, error) {
	var user models.User
	row := s.db.QueryRow("SELECT id, username, email, avatar_url, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.AvatarURL, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdateProfile updates a user's non-sensitive information.
func (s *UserService) UpdateProfile(id, username, email, avatarURL string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if len(username) < 3 || len(username) > 20 {
		return models.User{}, fmt.Errorf("%w: username must be 3-20 characters", ErrValidation)
	}
	if !strings.Contains(email, "@") {
		return models.User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}

	res, err := s.db.Exec("UPDATE users SET username = ?, email = ?, avatar_url = ? WHERE id = ?",
		username, email, avatarURL, id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: username or email already in use", ErrConflict)
		}
		return models.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, fmt.Errorf("%w: user", ErrNotFound)
	}
	return s.GetUserByID(id)
}

// UpdatePassword verifies the current password, then hashes and sets a new one.
func (s *UserService) UpdatePassword(id, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	var passwordHash string
	if err := s.db.QueryRow("SELECT password_hash FROM users WHERE id = ?", id).Scan(&passwordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user", ErrNotFound)
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(currentPassword)) != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), id)
	return err
}

// SendOTP issues a fresh password-reset challenge: a random 6-digit code whose
// SHA-256 hash is stored with a 10-minute expiry, any prior verification
// cleared. The caller's response must not reveal whether the email exists, so
// an unknown address returns nil. If mail delivery fails the challenge is
// rolled back: no valid-but-undelivered code may linger.
func (s *UserService) SendOTP(email string) error {
	user, err := s.getUserByEmail(normalizeEmail(email))
	if err != nil {
		log.Debug().Str("email", email).Msg("OTP requested for unknown email")
		return nil
	}

	code, err := generateOTPCode()
	if err != nil {
		return err
	}
	expires := time.Now().UTC().Add(otpTTL)

	_, err = s.db.Exec("UPDATE users SET otp_hash = ?, otp_expires = ?, otp_verified = 0 WHERE id = ?",
		hashOTP(code), expires, user.ID)
	if err != nil {
		return err
	}

	body := fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in 10 minutes.\n\nIf you did not request this, you can ignore this email.", user.Username, code)
	if err := s.mailer.Send(user.Email, "Your password reset code", body); err != nil {
		// Roll back the challenge so the stored hash never outlives a failed send.
		if _, rbErr := s.db.Exec("UPDATE users SET otp_hash = NULL, otp_expires = NULL, otp_verified = 0 WHERE id = ?", user.ID); rbErr != nil {
			log.Error().Err(rbErr).Str("user_id", user.ID).Msg("Failed to roll back OTP challenge")
		}
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	s.events.CreateEvent("auth.otp.sent", "info", fmt.Sprintf("Password reset code issued for '%s'.", user.Username), &user.ID)
	return nil
}

// VerifyOTP checks a submitted code against the active challenge and marks it
// verified. A mismatch leaves the challenge untouched.
func (s *UserService) VerifyOTP(email, code string) error {
	user, err := s.checkOTP(normalizeEmail(email), code)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("UPDATE users SET otp_verified = 1 WHERE id = ?", user.ID)
	return err
}

// ResetPassword consumes a verified challenge: the code must still match and
// be unexpired, and VerifyOTP must have succeeded for this same challenge.
// On success all OTP fields are cleared and a best-effort notification is sent.
func (s *UserService) ResetPassword(email, code, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	user, err := s.checkOTP(normalizeEmail(email), code)
	if err != nil {
		return err
	}
	if !user.OTPVerified {
		return fmt.Errorf("%w: code has not been verified", ErrUnauthorized)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.Exec("UPDATE users SET password_hash = ?, otp_hash = NULL, otp_expires = NULL, otp_verified = 0 WHERE id = ?",
		string(hashedPassword), user.ID)
	if err != nil {
		return err
	}

	// Fire-and-forget: a failed notification must not fail the reset.
	if err := s.mailer.Send(user.Email, "Your password was changed",
		fmt.Sprintf("Hi %s,\n\nYour Taskhive password was just changed. If this wasn't you, reset it immediately.", user.Username)); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to send password-changed notification")
	}

	s.events.CreateEvent("auth.password.reset", "info", fmt.Sprintf("Password reset completed for '%s'.", user.Username), &user.ID)
	return nil
}

// checkOTP loads the user and validates hash match + expiry against the
// active challenge. It does not look at the verified flag.
func (s *UserService) checkOTP(email, code string) (models.User, error) {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	if user.OTPHash == nil || user.OTPExpires == nil {
		return models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	if time.Now().UTC().After(*user.OTPExpires) {
		return models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	if subtle.ConstantTimeCompare([]byte(*user.OTPHash), []byte(hashOTP(code))) != 1 {
		return models.User{}, fmt.Errorf("%w: invalid or expired code", ErrUnauthorized)
	}
	return user, nil
}

// getUserByEmail retrieves a user by email including credential and OTP state.
func (s *UserService) getUserByEmail(email string) (models.User, error) {
	var user models.User
	var otpHash sql.NullString
	var otpExpires sql.NullTime
	row := s.db.QueryRow("SELECT id, username, email, password_hash, avatar_url, otp_hash, otp_expires, otp_verified, created_at FROM users WHERE email = ?", email)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.AvatarURL,
		&otpHash, &otpExpires, &user.OTPVerified, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("%w: user", ErrNotFound)
		}
		return models.User{}, err
	}
	if otpHash.Valid {
		user.OTPHash = &otpHash.String
	}
	if otpExpires.Valid {
		t := otpExpires.Time
		user.OTPExpires = &t
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// isUniqueViolation sniffs the driver error text for a UNIQUE constraint
// failure; modernc.org/sqlite exposes no typed constraint errors.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
