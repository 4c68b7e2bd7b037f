package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/domain"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// OAuthHandler owns the external provider handshake routes. A completed
// handshake never logs anyone in by itself: a signed-in caller gets the
// provider linked to their identity, an anonymous caller is told to sign in
// first.
type OAuthHandler struct {
	Registry *strategy.Registry
	Links    *service.LinkService
	Gateway  *Gateway
}

// Start begins the handshake for a provider, stashing a random state token
// in the session for the callback to check.
//
//	GET /auth/{provider}
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	provider := domain.Provider(r.PathValue("provider"))
	strat, ok := h.lookup(provider)
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider")
		return
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to mint handshake state", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"internal_error", "failed to begin the handshake")
		return
	}

	st.OAuthState = state
	if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
		slogx.FromContext(ctx).Error("session store unavailable", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"session_unavailable", "session store is unreachable")
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, strat.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the handshake: it checks the state token, exchanges the
// authorization code, and applies the linking decision for the obtained
// profile.
//
//	GET /auth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	provider := domain.Provider(r.PathValue("provider"))
	if _, ok := h.lookup(provider); !ok {
		httpx.WriteError(w, http.StatusNotFound, "unknown_provider", "no such provider")
		return
	}

	state := r.URL.Query().Get("state")
	expected := st.OAuthState
	st.OAuthState = "" // single use, consumed pass or fail
	if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
		slogx.FromContext(ctx).Warn("failed to consume handshake state", "err", err)
	}
	if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_state", "handshake state mismatch")
		return
	}

	outcome, err := h.Registry.Attempt(ctx, provider.String(), strategy.Credentials{
		AuthCode: r.URL.Query().Get("code"),
	})
	if err != nil {
		slogx.FromContext(ctx).Error("provider handshake failed", "provider", provider, "err", err)
		httpx.WriteError(w, http.StatusBadGateway,
			"provider_unavailable", "the provider did not complete the handshake")
		return
	}
	if outcome.Kind != strategy.KindDeferred || outcome.Profile == nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"handshake_rejected", "the provider rejected the handshake")
		return
	}

	// The handshake proved control of a provider account, nothing more.
	// Without a signed-in identity to attach it to there is nothing to do
	// but ask the caller to sign in and retry.
	if !st.Authenticated() {
		st.PushFlash("error", "Please sign in first, then connect "+titleProvider(provider)+".")
		if perr := h.Gateway.Sessions.Put(ctx, st); perr != nil {
			slogx.FromContext(ctx).Warn("failed to queue flash", "err", perr)
		}
		httpx.NoCache(w)
		http.Redirect(w, r, PathLogin, http.StatusFound)
		return
	}

	if _, err := h.Links.Link(ctx, st.UserID, *outcome.Profile); err != nil {
		if errors.Is(err, service.ErrLinkedElsewhere) {
			st.PushFlash("error", titleProvider(provider)+" account is already connected to another identity.")
			if perr := h.Gateway.Sessions.Put(ctx, st); perr != nil {
				slogx.FromContext(ctx).Warn("failed to queue flash", "err", perr)
			}
			httpx.NoCache(w)
			http.Redirect(w, r, PathAccount, http.StatusFound)
			return
		}
		slogx.FromContext(ctx).Error("failed to persist provider link", "provider", provider, "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable,
			"directory_unavailable", "identity directory is unreachable")
		return
	}

	st.PushFlash("info", "Connected "+titleProvider(provider)+".")
	if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
		slogx.FromContext(ctx).Warn("failed to queue flash", "err", err)
	}
	httpx.NoCache(w)
	http.Redirect(w, r, PathAccount, http.StatusFound)
}

// lookup resolves a provider to its configured strategy. Unknown and
// known-but-unconfigured names are both misses.
func (h *OAuthHandler) lookup(p domain.Provider) (*strategy.OAuthStrategy, bool) {
	if !p.Known() {
		return nil, false
	}
	return h.Registry.Provider(p)
}
