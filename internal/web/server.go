// Package web provides the HTTP server and handlers for the merge-and-clean UI.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/config"
	"github.com/JonMunkholm/sheetclean/internal/metrics"
	"github.com/JonMunkholm/sheetclean/internal/session"
	mw "github.com/JonMunkholm/sheetclean/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
)

// Server is the HTTP server for the merge-and-clean application.
type Server struct {
	flow     *session.Workflow
	cfg      *config.Config
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	router   *chi.Mux
	server   *http.Server
	limiters []*rateLimiter
}

// Option customizes a Server.
type Option func(*Server)

// WithMetrics instruments requests with m and serves reg on /metrics.
func WithMetrics(m *metrics.Metrics, reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = m
		s.registry = reg
	}
}

// NewServer creates a new Server instance.
func NewServer(flow *session.Workflow, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		flow:   flow,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Instrument)
	}
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	heavy := s.router.With()
	if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
		heavy = s.router.With(s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware)
	}

	// Pages
	s.router.Get("/", s.handleIndex)
	heavy.Post("/upload", s.handleUpload)
	heavy.Post("/clean", s.handleClean)
	s.router.Get("/download", s.handleDownload)
	s.router.Post("/reset", s.handleReset)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// An empty origin list would make cors allow everyone.
		if len(s.cfg.Security.AllowedOrigins) > 0 {
			r.Use(cors.New(cors.Options{
				AllowedOrigins: s.cfg.Security.AllowedOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost},
				AllowedHeaders: []string{"Content-Type", "Accept"},
				ExposedHeaders: []string{"Content-Disposition", "X-Request-Id", "X-Rows", "X-Contacts-Full", "X-Contacts-Short", "X-Contacts-Empty", "X-Skipped-Files"},
			}).Handler)
		}

		api := r.With()
		if s.cfg.Rate.Enabled && s.cfg.Rate.UploadLimit > 0 {
			api = r.With(s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware)
		}
		api.Post("/columns", s.handleAPIColumns)
		api.Post("/clean", s.handleAPIClean)
	})

	s.router.Get("/health", s.handleHealth)
	if s.registry != nil {
		s.router.Handle("/metrics", metrics.Handler(s.registry))
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Pages carry their own inline stylesheet and no scripts.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'")
			}

			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
// Its cleanup goroutine stops on Shutdown.
func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	s.limiters = append(s.limiters, rl)
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if rl.now().Sub(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1, // consume one token
			lastReset: now,
		}
		return true
	}

	// Reset tokens if window has passed
	if now.Sub(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = now
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
// TrustedRealIP has already replaced RemoteAddr for proxied requests.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError writes a JSON error response for failures outside a handler,
// such as rate limiting.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	slog.Warn("request rejected",
		"status", status,
		"reason", message,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)

	msg := coreMessage(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
