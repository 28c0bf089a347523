// Package workerd is slip's built-in worker: a small HTTP server that answers
// the liveness and disposal endpoints and exits once its session goes idle.
package workerd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/slipstream/slip/internal/health"
	"github.com/slipstream/slip/internal/idle"
	"github.com/slipstream/slip/internal/ports"
)

// Shutdown reasons.
const (
	ReasonDispose = "dispose"
	ReasonIdle    = "idle"
	ReasonSignal  = "signal"
	ReasonContext = "context"
)

const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	Port        int
	Version     string
	IdleTimeout time.Duration

	// ConfigFile is watched for idle_timeout changes. Empty disables watching.
	ConfigFile string

	// Logger defaults to a discard logger.
	Logger *log.Logger
}

// Server serves the worker endpoints and owns the idle supervisor.
type Server struct {
	cfg       Config
	logger    *log.Logger
	router    *httprouter.Router
	idle      *idle.Supervisor
	startedAt time.Time

	stopOnce sync.Once
	stopped  chan struct{}
	reason   string
}

// SessionRequest is the optional body of POST /session.
type SessionRequest struct {
	ID string `json:"id,omitempty"`
}

// SessionResponse describes the live session.
type SessionResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// New builds a Server. It does not listen until Run.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    httprouter.New(),
		idle:      idle.New(cfg.IdleTimeout),
		startedAt: time.Now(),
		stopped:   make(chan struct{}),
	}
	s.idle.OnIdle(s.handleIdle)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET(health.HealthPath, s.handleHealth)
	s.router.POST(health.DisposePath, s.handleDispose)
	s.router.GET("/session", s.handleGetSession)
	s.router.POST("/session", s.handleNewSession)
}

// Handler returns the HTTP handler. Every request counts as session activity.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.idle.Touch()
		s.router.ServeHTTP(w, r)
	})
}

// Done is closed once shutdown has been requested.
func (s *Server) Done() <-chan struct{} {
	return s.stopped
}

// Reason returns why shutdown was requested, or "" while running.
func (s *Server) Reason() string {
	select {
	case <-s.stopped:
		return s.reason
	default:
		return ""
	}
}

// Stop requests shutdown. Only the first reason is kept.
func (s *Server) Stop(reason string) {
	s.stopOnce.Do(func() {
		s.reason = reason
		close(s.stopped)
	})
}

// Run listens on localhost:Port, opens the first session and serves until
// disposed, idle, signalled, or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ports.Addr(s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sess := s.idle.Start("")
	s.logger.Printf("Worker running on port %d (PID %d, v%s), session %s, idle timeout %v",
		s.cfg.Port, os.Getpid(), s.cfg.Version, sess.ID, s.idle.Timeout())

	if s.cfg.ConfigFile != "" {
		w, err := watchConfig(s.cfg.ConfigFile, s.idle, s.logger)
		if err != nil {
			s.logger.Printf("Warning: config watch disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-s.stopped:
	case sig := <-sigChan:
		s.logger.Printf("Received %v", sig)
		s.Stop(ReasonSignal)
	case <-ctx.Done():
		s.Stop(ReasonContext)
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("serving: %w", err)
		}
		s.Stop("error")
	}

	s.logger.Printf("Shutting down (%s)", s.Reason())
	s.idle.Destroy()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("Warning: shutdown: %v", err)
	}
	s.logger.Printf("Worker stopped after %v", time.Since(s.startedAt).Round(time.Second))
	return runErr
}

func (s *Server) handleIdle(sess idle.Session) {
	s.logger.Printf("Session %s idle since %s, shutting down", sess.ID, sess.LastActiveAt.Format(time.RFC3339))
	s.Stop(ReasonIdle)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	healthy := true
	version := s.cfg.Version
	jsonResponse(w, http.StatusOK, health.Response{Healthy: &healthy, Version: &version})
}

func (s *Server) handleDispose(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.logger.Printf("Dispose requested")
	jsonResponse(w, http.StatusAccepted, map[string]bool{"disposing": true})
	// Reply first; the server shuts down after the handler returns.
	go s.Stop(ReasonDispose)
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	sess, ok := s.idle.Session()
	if !ok {
		jsonError(w, http.StatusNotFound, "no active session")
		return
	}
	jsonResponse(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req SessionRequest
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess := s.idle.Start(req.ID)
	s.logger.Printf("New session %s", sess.ID)
	jsonResponse(w, http.StatusCreated, toSessionResponse(sess))
}

func toSessionResponse(sess idle.Session) SessionResponse {
	return SessionResponse{ID: sess.ID, CreatedAt: sess.CreatedAt, LastActiveAt: sess.LastActiveAt}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, ErrorResponse{Error: message})
}
