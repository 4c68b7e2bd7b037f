package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// LoginHandler owns the primary-factor endpoints.
type LoginHandler struct {
	Auth    *service.AuthService
	Gateway *Gateway
}

// Page serves the login prompt, draining any queued flash messages.
//
//	GET /login
func (h *LoginHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	flashes := st.TakeFlashes()
	if len(flashes) > 0 {
		if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
			slogx.FromContext(ctx).Warn("failed to drain flashes", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"page":    "login",
		"flashes": flashes,
	})
}

// Submit verifies an email and password pair. Both unknown-email and
// bad-password rejections surface the same generic message; only an
// unverified account is called out, since that caller has already proven
// they own the credentials.
//
//	POST /login
func (h *LoginHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	result, err := h.Auth.Login(ctx, st, email, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnverifiedAccount):
			h.rebound(w, r, st, "Your account must be verified first!")
		case errors.Is(err, service.ErrInvalidCredentials):
			h.rebound(w, r, st, "Invalid email or password.")
		default:
			slogx.FromContext(ctx).Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"login_unavailable", "login is temporarily unavailable")
		}
		return
	}

	session.SetCookie(w, result.State.ID, result.State.ExpiresAt, h.Gateway.Cookie)

	if result.SecondFactorRequired {
		httpx.NoCache(w)
		http.Redirect(w, r, PathVerify, http.StatusFound)
		return
	}

	redirectResumed(ctx, w, r, h.Gateway.Sessions, result.State)
}

// Logout discards the session and clears the cookie. Logging out an
// anonymous session is a no-op.
//
//	POST /logout
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	if err := h.Auth.Logout(ctx, st); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"session_unavailable", "session store is unreachable")
		return
	}

	session.ClearCookie(w, h.Gateway.Cookie)
	httpx.NoCache(w)
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

// rebound queues a flash on the still-anonymous session and bounces back to
// the login page.
func (h *LoginHandler) rebound(w http.ResponseWriter, r *http.Request, st session.State, msg string) {
	ctx := r.Context()
	st.PushFlash("error", msg)
	if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
		slogx.FromContext(ctx).Warn("failed to queue flash", "err", err)
	}
	httpx.NoCache(w)
	http.Redirect(w, r, PathLogin, http.StatusFound)
}

// redirectResumed sends a fully trusted session to its recorded attempted
// URL, consuming it, or to the landing page when none was recorded.
func redirectResumed(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions session.Store, st session.State) {
	target := st.AttemptedURL
	if target == "" || !isLocalPath(target) {
		target = PathLanding
	}
	if st.AttemptedURL != "" {
		st.AttemptedURL = ""
		if err := sessions.Put(ctx, st); err != nil {
			slogx.FromContext(ctx).Warn("failed to consume attempted URL", "err", err)
		}
	}
	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

// isLocalPath accepts only same-origin targets for post-login resumption so
// a crafted attempted URL can never bounce the browser off-site.
func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}
