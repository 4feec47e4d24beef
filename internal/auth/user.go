package auth

import (
	"time"

	"github.com/willemschots/rentals/internal/email"
	"github.com/willemschots/rentals/internal/krypto"
)

// MaxNameLength is the maximum number of characters in a display name.
const MaxNameLength = 255

// User contains the data for a user.
// Email is always stored in its normalized form.
type User struct {
	ID           int
	Email        email.Address
	Name         string
	PasswordHash krypto.Argon2Hash
	IsActive     bool
	IsStaff      bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserExtra holds the optional fields of a new user.
// Nil flags take their defaults: active and staff are true.
type UserExtra struct {
	Name     string
	IsActive *bool
	IsStaff  *bool
}

// Credentials are used to authenticate a user.
type Credentials struct {
	Email    email.Address
	Password Password
}
