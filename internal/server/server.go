// Package server builds the HTTP router and runs the listener.
//
// All route definitions live in setupRoutes, each guarded by the access
// operation it performs. Handlers and their services are constructed in
// main and passed in through Handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/tubescribe/internal/access"
	"github.com/sakif/tubescribe/internal/auth"
	"github.com/sakif/tubescribe/internal/handler"
	"github.com/sakif/tubescribe/internal/metrics"
	"github.com/sakif/tubescribe/internal/middleware"
)

// Config holds listener and routing settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// MetricsPath mounts the Prometheus endpoint. Empty disables it.
	MetricsPath string
	// ServiceName names the server spans.
	ServiceName string

	RateLimit RateLimit
}

// RateLimit caps the two expensive endpoints. Token requests are counted
// per client IP, generation requests per authenticated user.
type RateLimit struct {
	Enabled           bool
	TokenPerMinute    int
	GeneratePerMinute int
}

// Handlers groups the HTTP handlers the router dispatches to.
type Handlers struct {
	Auth       *handler.AuthHandler
	Blog       *handler.BlogHandler
	Management *handler.ManagementHandler
	Health     *handler.HealthHandler
}

// Server represents the HTTP server and its routing table.
type Server struct {
	router  *chi.Mux
	config  Config
	authn   *auth.Middleware
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New builds the router. m may be nil, in which case neither request
// metrics nor the metrics endpoint are installed.
func New(cfg Config, h Handlers, authn *auth.Middleware, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		authn:   authn,
		metrics: m,
		logger:  logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes(h)
	return s
}

// Handler returns the fully wrapped handler, tracing included.
func (s *Server) Handler() http.Handler {
	name := s.config.ServiceName
	if name == "" {
		name = "http.server"
	}
	return otelhttp.NewHandler(s.router, name)
}

func (s *Server) setupRoutes(h Handlers) {
	r := s.router

	// Order matters: the request ID must exist before the logger reads it,
	// and Recoverer must sit inside the logger so a panic is logged as 500.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", h.Health.HandleLive)
	r.Get("/readyz", h.Health.HandleReady)
	if s.metrics != nil && s.config.MetricsPath != "" {
		r.Method(http.MethodGet, s.config.MetricsPath, s.metrics.Handler())
	}

	guard := s.authn.Require

	r.Route("/api/auth", func(r chi.Router) {
		r.With(guard(access.OpRegister)).Post("/register/", h.Auth.HandleRegister)
		r.With(guard(access.OpObtainToken), s.limitByIP(s.config.RateLimit.TokenPerMinute)).
			Post("/token/", h.Auth.HandleToken)
		r.With(guard(access.OpRefreshToken)).Post("/token/refresh/", h.Auth.HandleRefresh)
		r.With(guard(access.OpChangePassword)).Post("/password/change/", h.Auth.HandleChangePassword)
		r.With(guard(access.OpUpdateTheme)).Post("/theme/", h.Auth.HandleUpdateTheme)
		r.With(guard(access.OpMe)).Get("/me/", h.Auth.HandleMe)
		r.With(guard(access.OpDeleteAccount)).Delete("/delete-account/", h.Auth.HandleDeleteAccount)
	})

	r.Route("/api/blog", func(r chi.Router) {
		r.With(guard(access.OpGenerateBlog), s.limitByUser(s.config.RateLimit.GeneratePerMinute)).
			Post("/generate-from-youtube/", h.Blog.HandleGenerate)
		r.With(guard(access.OpListBlogs)).Get("/my-blogs/", h.Blog.HandleList)
		r.With(guard(access.OpGetBlog)).Get("/my-blogs/{id}/", h.Blog.HandleGet)
		r.With(guard(access.OpDeleteBlog)).Delete("/my-blogs/{id}/", h.Blog.HandleDelete)
		r.With(guard(access.OpDeleteBlog)).Delete("/my-blogs/{id}/delete/", h.Blog.HandleDelete)
	})

	r.Route("/api/management", func(r chi.Router) {
		m := h.Management
		r.With(guard(access.OpListUsers)).Get("/users/", m.HandleListUsers)
		r.With(guard(access.OpCreateUser)).Post("/users/", m.HandleCreateUser)
		r.With(guard(access.OpGetUser)).Get("/users/{id}/", m.HandleGetUser)
		r.With(guard(access.OpDeleteUser)).Delete("/users/{id}/", m.HandleDeleteUser)

		r.With(guard(access.OpListInvites)).Get("/invites/", m.HandleListInvites)
		r.With(guard(access.OpCreateInvite)).Post("/invites/", m.HandleCreateInvite)
		r.With(guard(access.OpGetInvite)).Get("/invites/{code}/", m.HandleGetInvite)
		r.With(guard(access.OpDeleteInvite)).Delete("/invites/{code}/", m.HandleDeleteInvite)
		r.With(guard(access.OpDeactivateInvite)).Post("/invites/{code}/deactivate/", m.HandleDeactivateInvite)

		r.With(guard(access.OpBanUser)).Post("/ban/", m.HandleBan)
		r.With(guard(access.OpViewStats)).Get("/stats/", m.HandleStats)
	})
}

// limitByIP throttles per client address. RealIP has already rewritten
// RemoteAddr by the time it runs.
func (s *Server) limitByIP(perMinute int) func(http.Handler) http.Handler {
	if !s.config.RateLimit.Enabled || perMinute <= 0 {
		return passthrough
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// limitByUser throttles per authenticated user and must run after the auth
// guard. Requests without a user fall back to the client address.
func (s *Server) limitByUser(perMinute int) func(http.Handler) http.Handler {
	if !s.config.RateLimit.Enabled || perMinute <= 0 {
		return passthrough
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if u, ok := auth.UserFromContext(r.Context()); ok {
				return "user:" + u.ID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(rateLimited),
	)
}

func passthrough(next http.Handler) http.Handler { return next }

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate_limited","message":"Request was throttled."}` + "\n"))
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then
// drains in-flight requests for up to ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.config.Addr).Msg("server starting")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown signal received")
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info().Msg("server stopped gracefully")
	return nil
}
