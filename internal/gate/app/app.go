package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/hatchway/gatehouse/internal/gate/http"
	"github.com/hatchway/gatehouse/internal/gate/notify"
	"github.com/hatchway/gatehouse/internal/gate/service"
	"github.com/hatchway/gatehouse/internal/gate/session"
	"github.com/hatchway/gatehouse/internal/gate/store"
	"github.com/hatchway/gatehouse/internal/gate/store/drivers/sqlite"
	"github.com/hatchway/gatehouse/internal/gate/strategy"
	"github.com/hatchway/gatehouse/pkg/cryptox"
	"github.com/hatchway/gatehouse/pkg/slogx"

	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	sessions session.Store
	registry *strategy.Registry
	sender   notify.Sender

	authService     *service.AuthService
	accountService  *service.AccountService
	linkService     *service.LinkService
	securityService *service.SecurityService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatehouse",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if len(app.cfg.VerifyTokenSecret) == 0 {
		// Ephemeral signing key for dev runs. Verification links stop
		// working across a restart.
		app.cfg.VerifyTokenSecret = []byte(cryptox.MustGenerateToken(cryptox.TokenSize256))
		app.logger.Warn("GATE_VERIFY_TOKEN_SECRET not set, minted an ephemeral signing key")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initStrategies(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initNotify()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("gatehouse starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatehouse...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gatehouse stopped")
	return nil
}

// initDatabase initializes the identity directory and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSessions picks the configured session backend.
func (app *Application) initSessions(ctx context.Context) error {
	switch app.cfg.SessionBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
		}
		app.sessions = session.NewRedisStore(client)
		app.logger.Info("session store ready", "backend", "redis", "addr", app.cfg.RedisAddr)
	case "memory", "":
		app.sessions = session.NewMemoryStore()
		app.logger.Info("session store ready", "backend", "memory")
	default:
		return fmt.Errorf("unknown session backend %q", app.cfg.SessionBackend)
	}
	return nil
}

// initStrategies builds the credential strategy registry. Providers without
// complete configuration are skipped, not fatal; the routes for them answer
// as unknown providers.
func (app *Application) initStrategies(ctx context.Context) error {
	list := []strategy.Strategy{
		&strategy.LocalStrategy{Store: app.db},
		&strategy.TOTPStrategy{Store: app.db},
	}

	type builder struct {
		name  string
		build func() (*strategy.OAuthStrategy, error)
		cfg   strategy.ProviderConfig
	}
	builders := []builder{
		{"facebook", func() (*strategy.OAuthStrategy, error) { return strategy.NewFacebook(app.cfg.Facebook) }, app.cfg.Facebook},
		{"github", func() (*strategy.OAuthStrategy, error) { return strategy.NewGitHub(app.cfg.GitHub) }, app.cfg.GitHub},
		{"twitter", func() (*strategy.OAuthStrategy, error) { return strategy.NewTwitter(app.cfg.Twitter) }, app.cfg.Twitter},
		{"google", func() (*strategy.OAuthStrategy, error) { return strategy.NewGoogle(ctx, app.cfg.Google) }, app.cfg.Google},
	}

	for _, b := range builders {
		if b.cfg.ClientID == "" && b.cfg.ClientSecret == "" {
			app.logger.Info("provider not configured, skipping", "provider", b.name)
			continue
		}
		s, err := b.build()
		if err != nil {
			return fmt.Errorf("failed to init %s provider: %w", b.name, err)
		}
		list = append(list, s)
		app.logger.Info("provider ready", "provider", b.name)
	}

	app.registry = strategy.NewRegistry(list...)
	return nil
}

// initNotify picks the mail transport. Without an SMTP host the messages go
// to the log, which keeps dev and test runs self-contained.
func (app *Application) initNotify() {
	if app.cfg.SMTPHost == "" {
		app.sender = &notify.LogSender{Logger: app.logger}
		app.logger.Info("mail transport ready", "transport", "log")
		return
	}
	app.sender = &notify.SMTPSender{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	}
	app.logger.Info("mail transport ready", "transport", "smtp", "host", app.cfg.SMTPHost)
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Registry:   app.registry,
		Sessions:   app.sessions,
		Store:      app.db,
		SessionTTL: app.cfg.SessionTTL,
	}
	app.accountService = &service.AccountService{
		Store:       app.db,
		Notify:      app.sender,
		Issuer:      app.cfg.Issuer,
		BaseURL:     app.cfg.BaseURL,
		TokenSecret: app.cfg.VerifyTokenSecret,
		TokenTTL:    app.cfg.VerifyTokenTTL,
	}
	app.linkService = &service.LinkService{Store: app.db}
	app.securityService = &service.SecurityService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	gateway := &httpapi.Gateway{
		Sessions:   app.sessions,
		Store:      app.db,
		Cookie:     session.CookieOptions{Secure: app.cfg.SecureCookies},
		SessionTTL: app.cfg.SessionTTL,
	}

	router := httpapi.NewRouter(gateway, BuildVersion, app.db, app.logger)
	router.Registry = app.registry
	router.AuthService = app.authService
	router.AccountService = app.accountService
	router.LinkService = app.linkService
	router.SecurityService = app.securityService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
