package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// AccountHandler owns self-service identity management: signup, email
// verification, the account page, provider unlinking, and second-factor
// enrolment.
type AccountHandler struct {
	Accounts *service.AccountService
	Links    *service.LinkService
	Security *service.SecurityService
	Gateway  *Gateway
}

type accountLink struct {
	Provider string `json:"provider"`
	LinkedAt string `json:"linked_at"`
}

// Signup creates an identity with the user role. The new identity starts
// unverified and cannot log in until the mailed verification link is
// followed.
//
//	POST /signup
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	user, err := h.Accounts.Create(ctx, service.CreateParams{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Role:     domain.RoleUser,
	})
	if err != nil {
		writeCreateError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":     user.ID,
		"email":  user.Email,
		"status": user.Status,
	})
}

// VerifyEmail consumes a mailed verification token and activates the
// identity. Safe to replay; a verified identity stays verified.
//
//	GET /verify-email?token=...
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Accounts.VerifyEmail(ctx, r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			httpx.WriteError(w, http.StatusBadRequest,
				"invalid_token", "verification link is invalid or expired")
			return
		}
		slogx.FromContext(ctx).Error("email verification failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"email":  user.Email,
		"status": user.Status,
	})
}

// Page serves the account summary: identity, provider links, second-factor
// state, and any queued flash messages.
//
//	GET /account
func (h *AccountHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)
	user, _ := userFromContext(ctx)

	links, err := h.Links.List(ctx, user.ID)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list provider links", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	out := make([]accountLink, 0, len(links))
	for _, l := range links {
		out = append(out, accountLink{
			Provider: l.Provider.String(),
			LinkedAt: l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	flashes := st.TakeFlashes()
	if len(flashes) > 0 {
		if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
			slogx.FromContext(ctx).Warn("failed to drain flashes", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"id":                 user.ID,
		"email":              user.Email,
		"role":               user.Role,
		"status":             user.Status,
		"two_factor_enabled": user.MFAActive(),
		"links":              out,
		"flashes":            flashes,
	})
}

// Unlink disconnects a provider from the caller's identity.
//
//	POST /account/unlink/{provider}
func (h *AccountHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	provider := domain.Provider(r.PathValue("provider"))
	if !provider.Known() {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider")
		return
	}

	if err := h.Links.Unlink(ctx, user.ID, provider); err != nil {
		slogx.FromContext(ctx).Error("failed to unlink provider", "provider", provider, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, PathAccount, http.StatusFound)
}

// ChangePassword rotates the caller's password.
//
//	POST /account/password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	err := h.Accounts.ChangePassword(ctx, user.ID,
		r.PostFormValue("current_password"), r.PostFormValue("new_password"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWrongPassword):
			httpx.WriteError(w, http.StatusBadRequest,
				"wrong_password", "current password rejected")
		case errors.Is(err, service.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest,
				"weak_password", "password does not meet the minimum length")
		default:
			slogx.FromContext(ctx).Error("password change failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"directory_unavailable", "identity directory is unreachable")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// EnrollMFA generates a TOTP secret for the caller. The secret stays
// inactive until Activate confirms the authenticator produces good codes.
//
//	POST /account/mfa/enroll
func (h *AccountHandler) EnrollMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	resp, err := h.Security.Enroll(ctx, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrMFAAlreadyEnabled) {
			httpx.WriteError(w, http.StatusConflict,
				"already_enabled", "a second factor is already active")
			return
		}
		slogx.FromContext(ctx).Error("second factor enrolment failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"secret":      resp.Secret,
		"otpauth_url": resp.OTPAuthURL,
		"issuer":      resp.Issuer,
		"account":     resp.Account,
	})
}

// ActivateMFA turns the enrolled secret on after verifying a first code.
//
//	POST /account/mfa/activate
func (h *AccountHandler) ActivateMFA(w http.ResponseWriter, r *http.Request) {
	h.mfaCodeAction(w, r, h.Security.Activate)
}

// DisableMFA removes the second factor after verifying a current code.
//
//	POST /account/mfa/disable
func (h *AccountHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	h.mfaCodeAction(w, r, h.Security.Disable)
}

func (h *AccountHandler) mfaCodeAction(w http.ResponseWriter, r *http.Request,
	action func(ctx context.Context, userID, code string) error,
) {
	ctx := r.Context()
	user, _ := userFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	if err := action(ctx, user.ID, r.PostFormValue("code")); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_code", "verification code rejected")
		case errors.Is(err, service.ErrMFANotEnrolled):
			httpx.WriteError(w, http.StatusConflict, "not_enrolled", "no second factor is enrolled")
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			httpx.WriteError(w, http.StatusConflict, "already_enabled", "a second factor is already active")
		default:
			slogx.FromContext(ctx).Error("second factor update failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"directory_unavailable", "identity directory is unreachable")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// writeCreateError maps account creation failures onto HTTP responses. The
// duplicate case deliberately gets an explicit status; signup is not a
// credential oracle the way login is.
func writeCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateIdentity):
		httpx.WriteError(w, http.StatusConflict, "duplicate_identity", "email already registered")
	case errors.Is(err, service.ErrInvalidEmail):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_email", "email address is not valid")
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, "weak_password", "password does not meet the minimum length")
	default:
		slogx.FromContext(ctx).Error("identity creation failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
	}
}
