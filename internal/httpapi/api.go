package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"rolodex.dev/internal/auth"
	"rolodex.dev/internal/config"
	"rolodex.dev/internal/contacts"
	"rolodex.dev/internal/obs"
)

const serviceName = "rolodex-api"

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness checks the database, when one is configured.
type Readiness struct {
	DB Pinger
}

func (rp Readiness) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rp.DB.Ping(ctx)
}

// Options wires the API to its services.
type Options struct {
	Accounts *auth.Service
	Contacts *contacts.Service
	Verifier TokenVerifier
	Resolver PrincipalResolver

	PublicPrefixes []string
	MaxBodyBytes   int64
	CORSOrigins    []string
	DevMode        bool
	TrustProxy     bool
	RateLimit      config.RateLimitConfig

	Readiness Readiness
	Version   string
}

// API is the HTTP layer.
type API struct {
	accounts *auth.Service
	contacts *contacts.Service
	gate     *Gate
	validate *validator.Validate
	ready    Readiness
	version  string
	router   chi.Router
}

func New(opts Options) (*API, error) {
	if opts.Accounts == nil || opts.Contacts == nil {
		return nil, errors.New("httpapi: account and contact services are required")
	}
	if opts.Verifier == nil || opts.Resolver == nil {
		return nil, errors.New("httpapi: token verifier and principal resolver are required")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	a := &API{
		accounts: opts.Accounts,
		contacts: opts.Contacts,
		gate:     NewGate(opts.Verifier, opts.Resolver, opts.PublicPrefixes),
		validate: newValidator(),
		ready:    opts.Readiness,
		version:  opts.Version,
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimid.RealIP)
	}
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(obs.Instrument)
	r.Use(chimid.Recoverer)
	r.Use(SecurityHeaders(opts.DevMode))
	r.Use(CORS(opts.CORSOrigins))
	if rl := opts.RateLimit; rl.Enabled() {
		r.Use(func(next http.Handler) http.Handler { return RateLimit(next, rl.Burst, rl.PerSecond) })
	}
	maxBytes := opts.MaxBodyBytes
	r.Use(func(next http.Handler) http.Handler { return MaxBodyBytes(next, maxBytes) })
	r.Use(a.gate.Handler)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.register)
		r.Post("/auth/login", a.login)

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", a.listContacts)
			r.Post("/", a.createContact)
			r.Get("/search", a.searchContacts)
			r.Get("/{id}", a.getContact)
			r.Put("/{id}", a.updateContact)
			r.Delete("/{id}", a.deleteContact)
			r.Patch("/{id}/favorite", a.toggleFavorite)
		})

		r.Route("/user", func(r chi.Router) {
			r.Get("/profile", a.profile)
			r.Put("/profile", a.updateProfile)
			r.Put("/change-password", a.changePassword)
			r.Delete("/account", a.deleteAccount)
		})
	})

	a.router = r
	return a, nil
}

// Handler returns the fully wrapped router.
func (a *API) Handler() http.Handler { return a.router }

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.ready.Check(r.Context()); err != nil {
		obs.Logger().Warn().Err(err).Msg("readiness_check_failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
