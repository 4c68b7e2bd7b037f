package strategy

import (
	"context"
	"testing"

	"github.com/hatchway/gatehouse/internal/gate/domain"

	"github.com/stretchr/testify/require"
)

func TestLocalStrategyAccepts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "local@example.com", "hunter2hunter2", seedOpts{})

	s := &LocalStrategy{Store: st}
	outcome, err := s.Attempt(ctx, Credentials{Email: "Local@Example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	require.Equal(t, KindAccepted, outcome.Kind)
	require.Equal(t, u.ID, outcome.UserID)

	// Acceptance records the login time.
	loaded, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastLogin)
}

func TestLocalStrategyRejectionsAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "known@example.com", "hunter2hunter2", seedOpts{})

	s := &LocalStrategy{Store: st}

	badPassword, err := s.Attempt(ctx, Credentials{Email: "known@example.com", Password: "wrong"})
	require.NoError(t, err)
	unknownEmail, err := s.Attempt(ctx, Credentials{Email: "nobody@example.com", Password: "wrong"})
	require.NoError(t, err)

	// A wrong password and an unknown email produce the same rejection so
	// the endpoint cannot be used to probe for registered addresses.
	require.Equal(t, KindRejected, badPassword.Kind)
	require.Equal(t, badPassword, unknownEmail)
	require.Equal(t, ReasonBadCredentials, badPassword.Reason)
}

func TestLocalStrategyRejectsUnverified(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "pending@example.com", "hunter2hunter2", seedOpts{status: domain.StatusUnverified})

	s := &LocalStrategy{Store: st}
	outcome, err := s.Attempt(ctx, Credentials{Email: "pending@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	require.Equal(t, KindRejected, outcome.Kind)
	require.Equal(t, ReasonUnverified, outcome.Reason)
}
