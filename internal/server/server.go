package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/simman/hostguard/internal/config"
	"github.com/simman/hostguard/internal/forwarder"
	"github.com/simman/hostguard/internal/hostfilter"
	"github.com/simman/hostguard/internal/metrics"
	"github.com/simman/hostguard/internal/router"
)

// Server is the gateway: host filter in front, routing and forwarding behind.
type Server struct {
	config    *config.Config
	filter    *hostfilter.Filter
	router    *router.Router
	forwarder *forwarder.Forwarder
	handler   http.Handler

	mu       sync.RWMutex
	srv      *http.Server
	listener net.Listener
	metrics  *metrics.Server
}

// Option configures a Server.
type Option func(*options)

type options struct {
	errorHandler hostfilter.ErrorHandler
}

// WithErrorHandler replaces the JSON renderer used for rejected hosts.
func WithErrorHandler(h hostfilter.ErrorHandler) Option {
	return func(o *options) {
		o.errorHandler = h
	}
}

// NewServer compiles the allow-list and routes and assembles the pipeline.
// The allow-list is fixed for the lifetime of the Server.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	o := &options{errorHandler: JSONErrors{}}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		config:    cfg,
		filter:    hostfilter.New(cfg.AllowedHosts, o.errorHandler),
		router:    router.NewRouter(),
		forwarder: forwarder.NewForwarder(),
	}
	s.router.UpdateRoutes(cfg.Routes)

	s.handler = chi.Chain(
		RequestID,
		middleware.Recoverer,
		metrics.Instrument,
		s.filter.Middleware,
	).HandlerFunc(s.dispatch)

	log.Info().
		Int("allowed_hosts", len(cfg.AllowedHosts)).
		Int("routes", len(cfg.Routes)).
		Msg("server configured")

	return s, nil
}

// Handler returns the full request pipeline.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Filter returns the host filter in front of the pipeline.
func (s *Server) Filter() *hostfilter.Filter {
	return s.filter
}

// ServeHTTP runs the request through the pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// dispatch is the last stage, reached only by allowed hosts.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	s.handleHTTP(w, r)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}
	s.srv = srv
	s.listener = listener

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("server started")
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", listener.Addr().String()).Msg("server error")
		}
	}()

	if s.config.Metrics.Enabled {
		s.metrics = metrics.NewServer(s.config.Metrics.Addr, s.config.Metrics.Path)
		s.metrics.Start()
	}

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the listeners and releases upstream connections.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info().Msg("stopping server")

	var errs []error
	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	if err := s.forwarder.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors during shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// Reload applies new routes. The allow-list is compiled once at startup, so
// a changed allowed_hosts only produces a warning.
func (s *Server) Reload(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Equal(cfg.AllowedHosts, s.config.AllowedHosts) {
		log.Warn().
			Strs("current", s.config.AllowedHosts).
			Strs("new", cfg.AllowedHosts).
			Msg("allowed_hosts changed, restart required to apply")
	}

	s.router.UpdateRoutes(cfg.Routes)

	next := *s.config
	next.Routes = cfg.Routes
	next.DefaultProxy = cfg.DefaultProxy
	s.config = &next

	log.Info().Msg("configuration reloaded")
	return nil
}
