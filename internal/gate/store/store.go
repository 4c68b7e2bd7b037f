package store

import (
	"context"
	"errors"

	"github.com/hatchway/gatehouse/internal/gate/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the identity directory interface. Concrete drivers (sqlite)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Users() Users
	Links() Links

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store.
type Tx interface {
	Users() Users
	Links() Links
}

type Users interface {
	// GetUserByID returns an identity by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up the unique key. The email is matched against
	// the normalized (lowercase) stored form.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new identity (id is provided by the app via ULID).
	// Returns ErrAlreadyExists on a duplicate email.
	CreateUser(ctx context.Context, u domain.User) error

	// ListUsers returns all identities ordered by creation (newest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CountUsers returns the total number of identities.
	CountUsers(ctx context.Context) (int64, error)

	// SetStatus updates the verification status and bumps updated_at.
	SetStatus(ctx context.Context, userID string, status domain.Status) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// TouchLastLogin records a successful primary-factor login.
	TouchLastLogin(ctx context.Context, userID string) error

	// UpdateMFASecret stores an enrolled (not yet activated) TOTP secret.
	UpdateMFASecret(ctx context.Context, userID, secret string, period uint) error

	// EnableMFA marks the second factor as active (sets mfa_enabled).
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears the second factor entirely.
	DisableMFA(ctx context.Context, userID string) error
}

type Links interface {
	// ListLinksByUser returns all provider links for an identity in a
	// stable (provider name) order.
	ListLinksByUser(ctx context.Context, userID string) ([]domain.Link, error)

	// GetLink returns the link for one identity/provider pair.
	GetLink(ctx context.Context, userID string, provider domain.Provider) (domain.Link, error)

	// GetLinkByExternalID finds the identity already holding a provider
	// account, if any.
	GetLinkByExternalID(ctx context.Context, provider domain.Provider, externalID string) (domain.Link, error)

	// UpsertLink creates or replaces the link for the identity/provider
	// pair, keeping at most one entry per provider per identity.
	UpsertLink(ctx context.Context, l domain.Link) error

	// DeleteLink removes a provider link.
	DeleteLink(ctx context.Context, userID string, provider domain.Provider) error
}
