package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// Redirect targets for denied requests.
const (
	PathLogin   = "/login"
	PathVerify  = "/verify"
	PathAccount = "/account"
	PathLanding = "/api"
)

// Machine-readable denial headers. Clients read X-Auth-Reason to learn why
// a 302 happened without parsing flash messages.
const (
	HeaderAuthRequired = "X-Auth-Required"
	HeaderAuthReason   = "X-Auth-Reason"
)

const (
	ReasonMustLogin         = "must_login"
	ReasonMustCompleteTOTP  = "must_complete_2fa"
	ReasonMustBeAdmin       = "must_be_admin"
	reasonAuthorizeProvider = "must_authorize_provider:" // + provider name
)

// Gateway is the ordered middleware chain guarding protected routes. Each
// gate assumes the gates before it have passed: authentication first, then
// second factor, then provider link, then role.
type Gateway struct {
	Sessions   session.Store
	Store      store.Store
	Cookie     session.CookieOptions
	SessionTTL time.Duration
}

// WithSession loads the caller's session from the cookie, minting a fresh
// anonymous one when the cookie is absent or names an expired token. The
// state is attached to the request context for the gates and handlers.
func (g *Gateway) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var st session.State
		if token := session.TokenFromRequest(r); token != "" {
			loaded, err := g.Sessions.Get(ctx, token)
			switch {
			case err == nil:
				st = loaded
			case errors.Is(err, session.ErrNotFound):
				// Fall through and mint a fresh session below.
			default:
				slogx.FromContext(ctx).Error("session store unavailable", "err", err)
				httpx.WriteError(w, http.StatusServiceUnavailable,
					"session_unavailable", "session store is unreachable")
				return
			}
		}

		if st.ID == "" {
			fresh, err := session.NewState(g.SessionTTL)
			if err != nil {
				slogx.FromContext(ctx).Error("failed to mint session", "err", err)
				httpx.WriteError(w, http.StatusInternalServerError,
					"internal_error", "failed to establish a session")
				return
			}
			if err := g.Sessions.Put(ctx, fresh); err != nil {
				slogx.FromContext(ctx).Error("session store unavailable", "err", err)
				httpx.WriteError(w, http.StatusServiceUnavailable,
					"session_unavailable", "session store is unreachable")
				return
			}
			session.SetCookie(w, fresh.ID, fresh.ExpiresAt, g.Cookie)
			st = fresh
		}

		next.ServeHTTP(w, r.WithContext(contextWithSession(ctx, st)))
	})
}

// RequireAuthentication denies anonymous callers and callers whose session
// points at a deleted identity. On success the identity record rides the
// request context for the downstream gates.
//
// An anonymous denial records the attempted URL in the session so a later
// successful login can resume it, marks the response with X-Auth-Required,
// and redirects to the login page. A session that is already fully
// authenticated passes through untouched.
func (g *Gateway) RequireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, ok := sessionFromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError,
				"internal_error", "session middleware not applied")
			return
		}

		if !st.Authenticated() {
			st.AttemptedURL = r.URL.RequestURI()
			st.PushFlash("error", "You must be logged in to reach that page.")
			if err := g.Sessions.Put(ctx, st); err != nil {
				slogx.FromContext(ctx).Error("session store unavailable", "err", err)
				httpx.WriteError(w, http.StatusServiceUnavailable,
					"session_unavailable", "session store is unreachable")
				return
			}
			w.Header().Set(HeaderAuthRequired, "true")
			g.deny(w, r, PathLogin, ReasonMustLogin)
			return
		}

		user, err := g.Store.Users().GetUserByID(ctx, st.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// The identity behind this session is gone. Drop the stale
				// session rather than serving a ghost.
				if derr := g.Sessions.Delete(ctx, st.ID); derr != nil {
					slogx.FromContext(ctx).Warn("failed to drop stale session", "err", derr)
				}
				session.ClearCookie(w, g.Cookie)
				w.Header().Set(HeaderAuthRequired, "true")
				g.deny(w, r, PathLogin, ReasonMustLogin)
				return
			}
			slogx.FromContext(ctx).Error("identity directory unavailable", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"directory_unavailable", "identity directory is unreachable")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(ctx, user)))
	})
}

// RequireSecondFactor denies sessions whose second factor is still pending.
// Identities without a second factor configured pass straight through. Must
// run after RequireAuthentication.
func (g *Gateway) RequireSecondFactor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, _ := sessionFromContext(ctx)
		user, ok := userFromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError,
				"internal_error", "authentication gate not applied")
			return
		}

		if user.MFAActive() && st.SecondFactor != session.SecondFactorValidated {
			st.PushFlash("error", "Please enter your verification code to continue.")
			if err := g.Sessions.Put(ctx, st); err != nil {
				slogx.FromContext(ctx).Warn("failed to queue flash", "err", err)
			}
			g.deny(w, r, PathVerify, ReasonMustCompleteTOTP)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireProviderLink denies identities that have not linked the provider
// named by the last path segment of the request. A known but unlinked
// provider sends the caller to the account page to connect it; an unknown
// name is forwarded to the handshake entry point for that name, where it
// will be rejected with full context. Must run after RequireAuthentication.
func (g *Gateway) RequireProviderLink(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, _ := sessionFromContext(ctx)
		user, ok := userFromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError,
				"internal_error", "authentication gate not applied")
			return
		}

		provider := domain.Provider(lastPathSegment(r.URL.Path))
		if !provider.Known() {
			// Unknown names go straight to the handshake entry point. This
			// redirect intentionally carries no X-Auth-Reason tag.
			httpx.NoCache(w)
			http.Redirect(w, r, "/auth/"+provider.String(), http.StatusFound)
			return
		}

		_, err := g.Store.Links().GetLink(ctx, user.ID, provider)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, store.ErrNotFound):
			st.PushFlash("error", "You must connect "+titleProvider(provider)+" first!")
			if perr := g.Sessions.Put(ctx, st); perr != nil {
				slogx.FromContext(ctx).Warn("failed to queue flash", "err", perr)
			}
			g.deny(w, r, PathAccount, reasonAuthorizeProvider+provider.String())
		default:
			slogx.FromContext(ctx).Error("identity directory unavailable", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"directory_unavailable", "identity directory is unreachable")
		}
	})
}

// RequireAdmin denies identities without the admin role. Must run after
// RequireAuthentication.
func (g *Gateway) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, _ := sessionFromContext(ctx)
		user, ok := userFromContext(ctx)
		if !ok {
			httpx.WriteError(w, http.StatusInternalServerError,
				"internal_error", "authentication gate not applied")
			return
		}

		if user.Role != domain.RoleAdmin {
			st.PushFlash("error", "You are not allowed in there.")
			if err := g.Sessions.Put(ctx, st); err != nil {
				slogx.FromContext(ctx).Warn("failed to queue flash", "err", err)
			}
			g.deny(w, r, PathLanding, ReasonMustBeAdmin)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// deny issues the gate's redirect, tagged with the machine-readable reason.
func (g *Gateway) deny(w http.ResponseWriter, r *http.Request, target, reason string) {
	w.Header().Set(HeaderAuthReason, reason)
	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

func lastPathSegment(path string) string {
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// titleProvider renders a provider name for humans ("github" -> "Github").
func titleProvider(p domain.Provider) string {
	s := p.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
