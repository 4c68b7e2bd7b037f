package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/notify"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/idx"
	"github.com/hatchway/gatehouse/pkg/slogx"

	"github.com/golang-jwt/jwt/v5"
)

const minPasswordLength = 8

var (
	ErrDuplicateIdentity = errors.New("duplicate_identity")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrWeakPassword      = errors.New("weak_password")
	ErrWrongPassword     = errors.New("wrong_password")
	ErrInvalidToken      = errors.New("invalid_verification_token")
)

// AccountService creates identities and handles email verification.
// Creation is an explicit ordered sequence of fallible steps: validate,
// persist, notify. A persist failure stops the chain before anything is
// sent; a notify failure is logged and never fails the creation.
type AccountService struct {
	Store       store.Store
	Notify      notify.Sender
	Issuer      string
	BaseURL     string        // public base URL for verification links
	TokenSecret []byte        // HS256 key for verification tokens
	TokenTTL    time.Duration // verification token lifetime
}

// CreateParams are the inputs for a new identity.
type CreateParams struct {
	Email    string
	Password string
	Role     domain.Role
}

// Create runs the account creation workflow. On a duplicate email it
// returns ErrDuplicateIdentity with no record mutated and no notification
// sent.
func (s *AccountService) Create(ctx context.Context, p CreateParams) (domain.User, error) {
	log := slogx.FromContext(ctx)

	// Step 1: validate.
	email := domain.NormalizeEmail(p.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if len(p.Password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}
	role := p.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("unknown role %q", p.Role)
	}

	// Step 2: persist.
	hash, err := cryptox.HashPassword(p.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Status:       domain.StatusUnverified,
		Role:         role,
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrDuplicateIdentity
		}
		return domain.User{}, fmt.Errorf("persist identity: %w", err)
	}

	// Step 3: notify. The identity exists at this point regardless of
	// whether the mail goes out.
	token, err := s.mintVerificationToken(user.ID)
	if err != nil {
		log.Error("failed to mint verification token", "user_id", user.ID, "err", err)
		return user, nil
	}

	body := fmt.Sprintf(
		"Welcome to %s!\n\nPlease confirm your address by visiting:\n%s/verify-email?token=%s\n",
		s.Issuer, s.BaseURL, token,
	)
	if err := s.Notify.Send(ctx, user.Email, "Please verify your account", body); err != nil {
		log.Error("failed to send verification notification", "user_id", user.ID, "err", err)
	}

	return user, nil
}

// VerifyEmail validates a verification token and flips the identity to
// verified.
func (s *AccountService) VerifyEmail(ctx context.Context, token string) (domain.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.TokenSecret, nil
	}, jwt.WithIssuer(s.Issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return domain.User{}, ErrInvalidToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidToken
		}
		return domain.User{}, fmt.Errorf("load identity: %w", err)
	}

	if user.Status != domain.StatusVerified {
		if err := s.Store.Users().SetStatus(ctx, user.ID, domain.StatusVerified); err != nil {
			return domain.User{}, fmt.Errorf("update status: %w", err)
		}
		user.Status = domain.StatusVerified
	}

	return user, nil
}

// ChangePassword replaces the caller's password after checking the current
// one, so a hijacked session cannot silently lock the owner out. The new
// password meets the same minimum as signup.
func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		return ErrWrongPassword
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("persist password: %w", err)
	}
	return nil
}

func (s *AccountService) mintVerificationToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.TokenSecret)
}
