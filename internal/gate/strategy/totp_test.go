package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/hatchway/gatehouse/pkg/cryptox"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "test",
		AccountName: "totp@example.com",
		Period:      cryptox.DefaultTOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return key.Secret()
}

func TestTOTPStrategyAccepts(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	secret := testSecret(t)
	u := seedUser(t, st, "totp@example.com", "hunter2hunter2", seedOpts{mfaSecret: secret})

	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	code, err := cryptox.GenerateTOTPCode(secret, cryptox.DefaultTOTPPeriod, at)
	require.NoError(t, err)

	s := &TOTPStrategy{Store: st, Now: func() time.Time { return at }}
	outcome, err := s.Attempt(ctx, Credentials{UserID: u.ID, Code: code})
	require.NoError(t, err)
	require.Equal(t, KindAccepted, outcome.Kind)
	require.Equal(t, u.ID, outcome.UserID)
}

func TestTOTPStrategyRejectsBadCode(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "badcode@example.com", "hunter2hunter2", seedOpts{mfaSecret: testSecret(t)})

	s := &TOTPStrategy{Store: st}
	outcome, err := s.Attempt(ctx, Credentials{UserID: u.ID, Code: "000000"})
	require.NoError(t, err)
	require.Equal(t, KindRejected, outcome.Kind)
	require.Equal(t, ReasonBadCode, outcome.Reason)
}

func TestTOTPStrategyFailsClosedWithoutEnrolment(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	u := seedUser(t, st, "nomfa@example.com", "hunter2hunter2", seedOpts{})

	at := time.Now()
	code, err := cryptox.GenerateTOTPCode(testSecret(t), cryptox.DefaultTOTPPeriod, at)
	require.NoError(t, err)

	// No code can pass for an identity without an active second factor.
	s := &TOTPStrategy{Store: st, Now: func() time.Time { return at }}
	outcome, err := s.Attempt(ctx, Credentials{UserID: u.ID, Code: code})
	require.NoError(t, err)
	require.Equal(t, KindRejected, outcome.Kind)

	outcome, err = s.Attempt(ctx, Credentials{UserID: "missing", Code: code})
	require.NoError(t, err)
	require.Equal(t, KindRejected, outcome.Kind)
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "dispatch@example.com", "hunter2hunter2", seedOpts{})

	reg := NewRegistry(&LocalStrategy{Store: st}, &TOTPStrategy{Store: st})

	outcome, err := reg.Attempt(ctx, NameLocal, Credentials{
		Email:    "dispatch@example.com",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	require.Equal(t, KindAccepted, outcome.Kind)

	_, err = reg.Attempt(ctx, "nonexistent", Credentials{})
	require.Error(t, err)
}
