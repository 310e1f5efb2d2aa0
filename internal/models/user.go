package models

import "time"

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	AvatarURL    string    `json:"avatarUrl"`
	CreatedAt    time.Time `json:"createdAt"`

	// One-time-code challenge for the password-reset flow. Only the SHA-256
	// hash of the code is ever stored.
	OTPHash     *string    `json:"-"`
	OTPExpires  *time.Time `json:"-"`
	OTPVerified bool       `json:"-"`
}
