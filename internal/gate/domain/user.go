package domain

import (
	"strings"
	"time"
)

// Role is the coarse authorization level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Status is the email verification state of an identity.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
)

// User is an identity record: credentials, role, second-factor settings.
// Linked provider accounts are stored separately (see Link).
type User struct {
	ID           string
	Email        string // stored lowercase, unique
	PasswordHash string // argon2id PHC encoded
	Status       Status
	Role         Role
	MFAEnabled   *time.Time // when the second factor was activated (nullable)
	MFASecret    *string    // TOTP secret, base32 (nullable)
	MFAPeriod    uint       // TOTP time-step seconds, 0 when MFA is off
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MFAActive reports whether the identity requires a second factor. An
// enabled flag without a secret and period counts as inactive, so a
// half-enrolled record can never lock an account open.
func (u User) MFAActive() bool {
	return u.MFAEnabled != nil &&
		u.MFASecret != nil && *u.MFASecret != "" &&
		u.MFAPeriod > 0
}

// NormalizeEmail lowercases and trims an email for use as the unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
