package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	klog "kvitt/internal/log"
	"kvitt/internal/middleware/ratelimit"
	"kvitt/internal/middleware/security"
	"kvitt/internal/middleware/trace"
	"kvitt/internal/session"
	appweb "kvitt/web"
)

// Check is a readiness probe of one dependency.
type Check func(ctx context.Context) error

// Config configures the server.
type Config struct {
	Addr     string
	Sessions *session.Manager

	CookieName    string
	CookieMaxAge  time.Duration
	SecureCookies bool

	RateLimitPerMin int
	Checks          map[string]Check
	Logger          *klog.Logger
}

// Server serves the pages, the htmx partials and the ops endpoints.
type Server struct {
	http.Server
	templates *template.Template
	sessions  *session.Manager
	cookie    cookieConfig
	checks    map[string]Check
	logger    *klog.Logger
	events    *klog.StructuredLogger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

type cookieConfig struct {
	name   string
	maxAge time.Duration
	secure bool
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("http: nil session manager")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "kvitt_session"
	}
	if cfg.Logger == nil {
		cfg.Logger = klog.New(klog.DefaultConfig())
	}
	logger := cfg.Logger.WithComponent(klog.ComponentHTTP)

	t, err := appweb.ParseTemplates()
	if err != nil {
		return nil, err
	}

	rlConfig := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMin > 0 {
		rlConfig.RequestsPerMinute = cfg.RateLimitPerMin
	}

	s := &Server{
		templates: t,
		sessions:  cfg.Sessions,
		cookie: cookieConfig{
			name:   cfg.CookieName,
			maxAge: cfg.CookieMaxAge,
			secure: cfg.SecureCookies,
		},
		checks:   cfg.Checks,
		logger:   logger,
		events:   klog.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /login", s.withSession(s.handleLoginPage))
	mux.Handle("POST /login", s.withSession(s.handleLogin))
	mux.Handle("GET /register", s.withSession(s.handleRegisterPage))
	mux.Handle("POST /register", s.withSession(s.handleRegister))
	mux.Handle("POST /logout", s.withSession(s.handleLogout))

	mux.Handle("GET /{$}", s.requireAuth(s.handleDashboard))
	mux.Handle("GET /ui/overview", s.requireAuth(s.handleOverview))
	mux.Handle("GET /ui/transactions/new", s.requireAuth(s.handleNewTransaction))
	mux.Handle("GET /ui/transactions/edit", s.requireAuth(s.handleEditTransaction))
	mux.Handle("POST /ui/transactions/cancel", s.requireAuth(s.handleCancelTransaction))
	mux.Handle("POST /transactions", s.requireAuth(s.handleSubmitTransaction))
	mux.Handle("DELETE /transactions/delete", s.requireAuth(s.handleDeleteTransaction))
	mux.Handle("POST /transactions/delete", s.requireAuth(s.handleDeleteTransaction))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}
}

// middleware wraps the mux, outermost first: tracing, security headers,
// suspicious request detection, rate limiting of mutations and the request
// scoped logger.
func (s *Server) middleware(mux http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, isMutation, s.rateLimited)

	var h http.Handler = mux
	h = klog.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = klog.Middleware(s.logger)(h)
	h = limit(h)
	h = s.detector.Middleware(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

func isMutation(r *http.Request) bool {
	return r.Method == http.MethodPost || r.Method == http.MethodDelete
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		klog.FieldClientIP, s.detector.ExtractClientIP(r),
		klog.FieldMethod, r.Method,
		klog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "För många förfrågningar. Försök igen om en stund.").Write(w)
}

// Shutdown stops the background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render writes a full page or fragment. Template failures are logged and
// answered with a 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	if err := b.Render(s.templates, name, data); err != nil {
		s.events.LogError(r.Context(), "Template execution failed", err, klog.ComponentTemplate, klog.OpRender,
			klog.LogFields{"template": name})
	}
	b.Write(w)
}

// redirect sends a browser to path: a 303 for plain requests, HX-Redirect
// for htmx ones.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(path).Write(w)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func logRequestError(r *http.Request, msg string, err error) {
	klog.FromContext(r.Context()).ErrorContext(r.Context(), msg, klog.FieldError, err, klog.FieldPath, r.URL.Path)
}
