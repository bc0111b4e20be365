// Package user defines the user model used throughout the application,
// particularly for authentication and link ownership.
package user

import "time"

// User represents a registered account.
// Shortened links reference their owner through the user ID.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	// Email is unique across all users and doubles as the login name.
	Email string

	FirstName string
	LastName  string

	// PasswordSalt and PasswordHash are hex-encoded; the plaintext
	// password is never stored.
	PasswordSalt string
	PasswordHash string

	CreatedAt time.Time
}
