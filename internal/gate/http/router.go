package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/httpx"
	"github.com/hatchway/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers and wires every route
// behind its gate chain.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	gateway      *Gateway
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	Registry        *strategy.Registry
	AuthService     *service.AuthService
	AccountService  *service.AccountService
	LinkService     *service.LinkService
	SecurityService *service.SecurityService
}

func NewRouter(
	gateway *Gateway,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		gateway:      gateway,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain. The session middleware runs on every
	// route so flash messages and attempted URLs work everywhere.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		gateway.WithSession,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAccount()
	r.registerProviders()
	r.registerAPI()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	login := &LoginHandler{Auth: r.AuthService, Gateway: r.gateway}
	second := &TwoFactorHandler{Auth: r.AuthService, Gateway: r.gateway}

	r.Mux.Handle("GET /login", http.HandlerFunc(login.Page))

	// POST /login - strict rate limit keyed on IP plus submitted email
	r.Mux.Handle("POST /login",
		httpx.Chain(http.HandlerFunc(login.Submit),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /logout", http.HandlerFunc(login.Logout))

	r.Mux.Handle("GET /verify", http.HandlerFunc(second.Page))

	// POST /verify - strict rate limit (one-time codes are guessable)
	r.Mux.Handle("POST /verify",
		httpx.Chain(http.HandlerFunc(second.Submit),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccount() {
	account := &AccountHandler{
		Accounts: r.AccountService,
		Links:    r.LinkService,
		Security: r.SecurityService,
		Gateway:  r.gateway,
	}

	// POST /signup - strict rate limit (creates records and sends mail)
	r.Mux.Handle("POST /signup",
		httpx.Chain(http.HandlerFunc(account.Signup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /verify-email",
		httpx.Chain(http.HandlerFunc(account.VerifyEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// The account surface requires a fully trusted session but no provider
	// link or role.
	trusted := []httpx.Middleware{
		r.gateway.RequireAuthentication,
		r.gateway.RequireSecondFactor,
	}

	r.Mux.Handle("GET /account",
		httpx.Chain(http.HandlerFunc(account.Page),
			append(trusted, httpx.RateLimitByIP(httpx.LenientLimit))...))
	r.Mux.Handle("POST /account/unlink/{provider}",
		httpx.Chain(http.HandlerFunc(account.Unlink), trusted...))

	// POST /account/password - strict rate limit (takes the current password)
	r.Mux.Handle("POST /account/password",
		httpx.Chain(http.HandlerFunc(account.ChangePassword),
			append(trusted, httpx.RateLimitByIP(httpx.StrictLimit))...))

	r.Mux.Handle("POST /account/mfa/enroll",
		httpx.Chain(http.HandlerFunc(account.EnrollMFA), trusted...))
	r.Mux.Handle("POST /account/mfa/activate",
		httpx.Chain(http.HandlerFunc(account.ActivateMFA),
			append(trusted, httpx.RateLimitByIP(httpx.StrictLimit))...))
	r.Mux.Handle("POST /account/mfa/disable",
		httpx.Chain(http.HandlerFunc(account.DisableMFA),
			append(trusted, httpx.RateLimitByIP(httpx.StrictLimit))...))
}

func (r *Router) registerProviders() {
	oauth := &OAuthHandler{
		Registry: r.Registry,
		Links:    r.LinkService,
		Gateway:  r.gateway,
	}

	// Handshake routes are reachable both signed in (to link) and signed
	// out (where the callback refuses to auto-login).
	r.Mux.Handle("GET /auth/{provider}",
		httpx.Chain(http.HandlerFunc(oauth.Start),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /auth/{provider}/callback",
		httpx.Chain(http.HandlerFunc(oauth.Callback),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAPI() {
	api := &APIHandler{Links: r.LinkService, Gateway: r.gateway}

	r.Mux.Handle("GET /api",
		httpx.Chain(http.HandlerFunc(api.Landing),
			r.gateway.RequireAuthentication,
			r.gateway.RequireSecondFactor,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Gate order: authentication, second factor, then the provider link.
	r.Mux.Handle("GET /api/{provider}",
		httpx.Chain(http.HandlerFunc(api.ProviderResource),
			r.gateway.RequireAuthentication,
			r.gateway.RequireSecondFactor,
			r.gateway.RequireProviderLink,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	admin := &AdminHandler{
		Accounts: r.AccountService,
		Store:    r.store,
		Gateway:  r.gateway,
	}

	guarded := []httpx.Middleware{
		r.gateway.RequireAuthentication,
		r.gateway.RequireSecondFactor,
		r.gateway.RequireAdmin,
	}

	r.Mux.Handle("GET /dashboard",
		httpx.Chain(http.HandlerFunc(admin.Dashboard),
			append(guarded, httpx.RateLimitByIP(httpx.LenientLimit))...))
	r.Mux.Handle("GET /accounts",
		httpx.Chain(http.HandlerFunc(admin.ListAccounts),
			append(guarded, httpx.RateLimitByIP(httpx.LenientLimit))...))
	r.Mux.Handle("POST /accounts",
		httpx.Chain(http.HandlerFunc(admin.CreateAccount),
			append(guarded, httpx.RateLimitByIP(httpx.ModerateLimit))...))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.gateway.Sessions))
}
