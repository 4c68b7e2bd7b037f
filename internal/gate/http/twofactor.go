package http

import (
	"errors"
	"net/http"

	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// TwoFactorHandler owns the second-factor checkpoint a pending session must
// pass through.
type TwoFactorHandler struct {
	Auth    *service.AuthService
	Gateway *Gateway
}

// Page serves the code prompt, draining queued flash messages. A session
// with nothing pending is sent back to the login page.
//
//	GET /verify
func (h *TwoFactorHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	if !st.Authenticated() {
		httpx.NoCache(w)
		http.Redirect(w, r, PathLogin, http.StatusFound)
		return
	}

	flashes := st.TakeFlashes()
	if len(flashes) > 0 {
		if err := h.Gateway.Sessions.Put(ctx, st); err != nil {
			slogx.FromContext(ctx).Warn("failed to drain flashes", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"page":          "verify",
		"second_factor": st.SecondFactor,
		"flashes":       flashes,
	})
}

// Submit checks a one-time code for a pending session. A bad code bounces
// back to the prompt with a generic message and the session stays pending;
// a good code moves the session to full trust and resumes the attempted
// URL.
//
//	POST /verify
func (h *TwoFactorHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st, _ := sessionFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	code := r.PostFormValue("code")

	validated, err := h.Auth.CompleteSecondFactor(ctx, st, code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingSecondFactor):
			httpx.NoCache(w)
			http.Redirect(w, r, PathLogin, http.StatusFound)
		case errors.Is(err, service.ErrInvalidSecondFactor):
			st.PushFlash("error", "Invalid verification code.")
			if perr := h.Gateway.Sessions.Put(ctx, st); perr != nil {
				slogx.FromContext(ctx).Warn("failed to queue flash", "err", perr)
			}
			httpx.NoCache(w)
			http.Redirect(w, r, PathVerify, http.StatusFound)
		default:
			slogx.FromContext(ctx).Error("second factor check failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"verification_unavailable", "verification is temporarily unavailable")
		}
		return
	}

	redirectResumed(ctx, w, r, h.Gateway.Sessions, validated)
}
