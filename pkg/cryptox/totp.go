package cryptox

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// DefaultTOTPPeriod is the time-step used for newly enrolled secrets.
const DefaultTOTPPeriod = 30

// VerifyTOTP checks a submitted time-based one-time code against the shared
// secret for the time step containing at. One adjacent step in each
// direction is accepted for clock skew. Fails closed when the secret or
// period is absent.
func VerifyTOTP(secret string, period uint, code string, at time.Time) bool {
	if secret == "" || period == 0 {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// GenerateTOTPCode computes the code for the time step containing at.
// Intended for tests and enrolment verification flows.
func GenerateTOTPCode(secret string, period uint, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
