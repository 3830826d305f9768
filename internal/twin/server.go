// Package twin is an in-memory stand-in for the Moto Saga platform API.
// It implements the endpoint contract the conformance suites check, so the
// suites can be exercised end to end without the real service.
package twin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Policy holds the behaviours the platform has not settled on.
type Policy struct {
	ClubCanCreateEvents    bool
	CreatorCanCreateEvents bool

	// StatsDeniedStatus is returned to non-admins on GET /admin/stats.
	StatsDeniedStatus int
}

// DefaultPolicy is admin-only event creation and 401 for non-admin stats.
func DefaultPolicy() Policy {
	return Policy{StatsDeniedStatus: http.StatusUnauthorized}
}

// Server is the twin. It is safe for concurrent use.
type Server struct {
	policy Policy
	state  *state
	tokens *tokenIssuer
	logger *slog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Server) { s.policy = p }
}

// WithSecret sets the token signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) { s.tokens.secret = []byte(secret) }
}

// WithClock sets the time source for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.state.now = now
		s.tokens.now = now
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a twin with empty state.
func New(opts ...Option) *Server {
	s := &Server{
		policy: DefaultPolicy(),
		state:  newState(time.Now),
		tokens: &tokenIssuer{secret: []byte(DefaultSecret), now: time.Now},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.StatsDeniedStatus == 0 {
		s.policy.StatsDeniedStatus = http.StatusUnauthorized
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler so the twin can back an httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Reset clears all state.
func (s *Server) Reset() {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.reset()
}

// Stats returns the current counts, as an admin would see them.
func (s *Server) Stats() Stats {
	return s.state.stats()
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Reset()
	s.logger.Info("twin state reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stats())
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)

	// Control plane for tests driving the twin over HTTP; not part of the
	// platform API.
	r.Post("/admin/reset", s.handleReset)
	r.Get("/admin/state", s.handleState)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", s.signup)
		r.Post("/auth/login", s.login)
		r.Get("/stories", s.listStories)
		r.Get("/stories/{id}", s.getStory)
		r.Get("/events", s.listEvents)
		r.Get("/events/{id}", s.getEvent)
		r.Get("/users/{id}", s.getUser)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/auth/me", s.me)
			r.Put("/users/{id}", s.updateUser)
			r.Post("/upload", s.upload)

			r.Post("/stories", s.createStory)
			r.Post("/stories/{id}/like", s.likeStory)
			r.Post("/stories/{id}/comment", s.commentStory)
			r.Delete("/stories/{id}", s.deleteStory)

			r.Post("/events", s.createEvent)
			r.Post("/events/{id}/rsvp", s.rsvpEvent)
			r.Delete("/events/{id}", s.deleteEvent)

			r.Get("/admin/stats", s.adminStats)
			r.Delete("/admin/stories/{id}", s.adminDeleteStory)
			r.Delete("/admin/events/{id}", s.adminDeleteEvent)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	})
	return r
}

// requestLog logs each request at debug level.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("twin listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("twin shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
