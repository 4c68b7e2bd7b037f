package session

import (
	"context"
	"errors"
)

// ErrNotFound reports an absent or expired session token.
var ErrNotFound = errors.New("session: not found")

// Store maps opaque session tokens to serialized State. Implementations
// must support concurrent access with read-your-writes consistency for a
// single request chain.
type Store interface {
	// Get returns the state for a token, or ErrNotFound.
	Get(ctx context.Context, token string) (State, error)

	// Put writes the state under its own token, refreshing the TTL.
	Put(ctx context.Context, s State) error

	// Delete removes the state. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
