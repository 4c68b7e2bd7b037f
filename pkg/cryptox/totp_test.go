package cryptox

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func testTOTPSecret(t *testing.T) string {
	t.Helper()
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "test",
		AccountName: "test@example.com",
		Period:      DefaultTOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return key.Secret()
}

func TestVerifyTOTP(t *testing.T) {
	t.Parallel()

	secret := testTOTPSecret(t)
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	code, err := GenerateTOTPCode(secret, DefaultTOTPPeriod, at)
	require.NoError(t, err)

	require.True(t, VerifyTOTP(secret, DefaultTOTPPeriod, code, at))
	require.False(t, VerifyTOTP(secret, DefaultTOTPPeriod, "000000", at))
}

func TestVerifyTOTPAcceptsAdjacentStep(t *testing.T) {
	t.Parallel()

	secret := testTOTPSecret(t)
	at := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)

	code, err := GenerateTOTPCode(secret, DefaultTOTPPeriod, at)
	require.NoError(t, err)

	// One step of drift either way still verifies; two steps does not.
	require.True(t, VerifyTOTP(secret, DefaultTOTPPeriod, code, at.Add(DefaultTOTPPeriod*time.Second)))
	require.True(t, VerifyTOTP(secret, DefaultTOTPPeriod, code, at.Add(-DefaultTOTPPeriod*time.Second)))
	require.False(t, VerifyTOTP(secret, DefaultTOTPPeriod, code, at.Add(3*DefaultTOTPPeriod*time.Second)))
}

func TestVerifyTOTPFailsClosed(t *testing.T) {
	t.Parallel()

	secret := testTOTPSecret(t)
	at := time.Now()

	code, err := GenerateTOTPCode(secret, DefaultTOTPPeriod, at)
	require.NoError(t, err)

	require.False(t, VerifyTOTP("", DefaultTOTPPeriod, code, at))
	require.False(t, VerifyTOTP(secret, 0, code, at))
	require.False(t, VerifyTOTP(secret, DefaultTOTPPeriod, "", at))
}
