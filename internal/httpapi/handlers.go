// Package httpapi exposes the account and authorization services over HTTP
// and the readiness state over gRPC health.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MarceloPazPezo/Plantilla-PERN/internal/auth"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/authz"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/obs"
	"github.com/MarceloPazPezo/Plantilla-PERN/internal/validation"
)

const serviceName = "plantilla-api"

// Accounts is the account service the handlers drive. *auth.Service
// satisfies it.
type Accounts interface {
	authz.PrimaryRoleResolver

	Login(ctx context.Context, rut, password string) (auth.Session, error)
	Register(ctx context.Context, in auth.NewUser) (auth.User, error)
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
	GetUser(ctx context.Context, q auth.UserQuery) (auth.User, error)
	ListUsers(ctx context.Context, page, limit int) (auth.UserPage, error)
	CreateUser(ctx context.Context, in auth.NewUser) (auth.User, error)
	UpdateUser(ctx context.Context, q auth.UserQuery, ch auth.UserChanges) (auth.User, error)
	DeleteUser(ctx context.Context, q auth.UserQuery) (auth.User, error)
	ListRoles(ctx context.Context) ([]auth.Role, error)
	TokenTTL() time.Duration
}

// Pinger is satisfied by the Postgres store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe reports whether the backing database answers.
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// Settings tunes the transport layer.
type Settings struct {
	Version      string
	Production   bool
	CookieSecure bool
	CORSOrigins  []string
	// RatePerSec and RateBurst size the per-IP token bucket. Zero disables it.
	RatePerSec float64
	RateBurst  int
	// LoginPerMinute caps login attempts per client IP.
	LoginPerMinute int
	MaxBodyBytes   int64
}

// API is the HTTP layer.
type API struct {
	accounts  Accounts
	evaluator *authz.Evaluator
	validate  *validation.Validator
	ready     ReadyProbe
	settings  Settings
	logger    *zap.Logger
	router    chi.Router
}

// Option configures API.
type Option func(*API)

// WithLogger sets the base logger for request logs.
func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithEvaluator replaces the default authorization evaluator.
func WithEvaluator(e *authz.Evaluator) Option {
	return func(a *API) {
		if e != nil {
			a.evaluator = e
		}
	}
}

func New(accounts Accounts, ready ReadyProbe, settings Settings, opts ...Option) *API {
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = 1 << 20
	}
	if settings.LoginPerMinute <= 0 {
		settings.LoginPerMinute = 10
	}
	a := &API{
		accounts: accounts,
		validate: validation.New(),
		ready:    ready,
		settings: settings,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.evaluator == nil {
		a.evaluator = authz.New(authz.WithLogger(a.logger))
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(a.Logging)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders(a.settings.Production))
	r.Use(CORS(a.settings.CORSOrigins))
	r.Use(MaxBodyBytes(a.settings.MaxBodyBytes))
	if a.settings.RatePerSec > 0 {
		r.Use(RateLimit(a.settings.RateBurst, a.settings.RatePerSec))
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", a.Info)

		r.Route("/auth", func(r chi.Router) {
			r.With(LoginLimit(a.settings.LoginPerMinute)).Post("/login", a.handleLogin)
			r.Post("/register", a.handleRegister)
			r.Post("/logout", a.handleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.Authenticate)

			r.Route("/users", func(r chi.Router) {
				r.With(a.RequirePermissions(auth.PermUserReadAll)).Get("/", a.handleListUsers)
				r.With(a.RequirePermissions(auth.PermUserCreate)).Post("/", a.handleCreateUser)
				r.With(a.RequirePermissions(auth.PermUserReadSpecific)).Get("/search", a.handleSearchUser)
				r.With(a.RequirePermissions(auth.PermUserReadProfile)).Get("/detail", a.handleGetProfile)
				r.With(a.RequirePermissions(auth.PermUserUpdateProfile)).Patch("/detail", a.handleUpdateProfile)
				r.With(a.RequirePermissions(auth.PermUserReadSpecific)).Get("/detail/{id}", a.handleGetUser)
				r.With(a.RequirePermissions(auth.PermUserUpdateSpecific)).Patch("/detail/{id}", a.handleUpdateUser)
				r.With(a.RequirePermissions(auth.PermUserDelete)).Delete("/detail/{id}", a.handleDeleteUser)
			})
			r.With(a.RequireRoles(auth.RoleAdministrador, auth.RoleSupervisor)).Get("/roles", a.handleListRoles)
			r.With(a.RequireAdmin()).Get("/admin/ping", a.handleAdminPing)
		})
	})
	return r
}

// Handler returns the root handler wrapped with Prometheus instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.settings.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, "Información del servicio", map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.settings.Version,
	})
}
