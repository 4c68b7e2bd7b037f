package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/cryptox"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrMFAAlreadyEnabled = errors.New("second factor already enabled")
	ErrMFANotEnrolled    = errors.New("second factor not enrolled")
	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
)

// SecurityService manages second-factor enrolment. Enrolling stores a
// secret without enabling it; only a verified first code activates the
// second factor, so a user can never lock themselves out with an unscanned
// secret.
type SecurityService struct {
	Store  store.Store
	Issuer string // issuer name shown in authenticator apps
}

// EnrollResponse carries the material the user needs to set up their
// authenticator.
type EnrollResponse struct {
	Secret     string // base32 encoded
	OTPAuthURL string // otpauth:// URL for QR code generation
	Issuer     string
	Account    string
}

// Enroll generates a TOTP secret for the identity and stores it inactive.
func (s *SecurityService) Enroll(ctx context.Context, userID string) (EnrollResponse, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return EnrollResponse{}, fmt.Errorf("load identity: %w", err)
	}
	if user.MFAActive() {
		return EnrollResponse{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      cryptox.DefaultTOTPPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return EnrollResponse{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	if err := s.Store.Users().UpdateMFASecret(ctx, userID, key.Secret(), cryptox.DefaultTOTPPeriod); err != nil {
		return EnrollResponse{}, fmt.Errorf("store TOTP secret: %w", err)
	}

	return EnrollResponse{
		Secret:     key.Secret(),
		OTPAuthURL: key.URL(),
		Issuer:     s.Issuer,
		Account:    user.Email,
	}, nil
}

// Activate verifies the first code from the user's authenticator and
// enables the second factor.
func (s *SecurityService) Activate(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if user.MFAActive() {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == nil || *user.MFASecret == "" || user.MFAPeriod == 0 {
		return ErrMFANotEnrolled
	}

	if !cryptox.VerifyTOTP(*user.MFASecret, user.MFAPeriod, code, time.Now()) {
		return ErrInvalidTOTPCode
	}

	return s.Store.Users().EnableMFA(ctx, userID)
}

// Disable verifies a current code and removes the second factor.
func (s *SecurityService) Disable(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if !user.MFAActive() {
		return ErrMFANotEnrolled
	}

	if !cryptox.VerifyTOTP(*user.MFASecret, user.MFAPeriod, code, time.Now()) {
		return ErrInvalidTOTPCode
	}

	return s.Store.Users().DisableMFA(ctx, userID)
}
