// Package httpapi exposes the engine over a JSON REST surface routed with
// chi. Tokens travel either in response bodies (default) or as HTTP-only
// cookies when cookie mode is enabled.
package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	campusauth "github.com/campuskit/campusauth"
	"github.com/campuskit/campusauth/metrics/export/prometheus"
	"github.com/campuskit/campusauth/middleware"
)

// Config controls transport-level behavior of the API.
type Config struct {
	// CookieMode sets tokens as HTTP-only secure cookies instead of
	// returning them in response bodies.
	CookieMode   bool
	CookieDomain string
	// AdminRoles may call the admin revocation surface.
	AdminRoles []string
}

// Server routes HTTP requests to the engine.
type Server struct {
	engine *campusauth.Engine
	config Config
}

func NewServer(engine *campusauth.Engine, cfg Config) *Server {
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = []string{"admin"}
	}
	return &Server{engine: engine, config: cfg}
}

// Router builds the full route tree, including health and metrics
// endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestContext)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/signup/verify-otp", s.handleSignupVerifyOTP)
		r.Post("/signup/setup-profile", s.handleSetupProfile)

		r.Post("/signin", s.handleSignin)
		r.Post("/verify-signin", s.handleVerifySignin)

		r.Post("/password-reset/request", s.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", s.handlePasswordResetConfirm)
		r.Post("/password-reset/complete", s.handlePasswordResetComplete)

		r.Route("/session", func(r chi.Router) {
			r.Post("/signin", s.handlePasswordSignin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/signout", s.handleSignout)
			r.Get("/list", s.handleListSessions)
			r.Delete("/all", s.handleLogoutAll)
			r.Delete("/{sessionID}", s.handleLogoutSession)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.engine))
		r.Use(middleware.RequireRole(s.config.AdminRoles...))
		r.Delete("/{subjectID}", s.handleDeactivate)
		r.Post("/{subjectID}/restore", s.handleRestore)
	})

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", prometheus.NewExporter(s.engine).Handler())

	return r
}

// requestContext threads client IP and user agent into the engine context
// helpers so sessions and audit events carry them.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = campusauth.WithClientIP(ctx, clientIP(r))
		ctx = campusauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
