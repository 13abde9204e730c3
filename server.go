package nitro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nitrohttp/nitro/internal/config"
	"github.com/nitrohttp/nitro/internal/middleware"
	"github.com/nitrohttp/nitro/internal/observability"
	"github.com/nitrohttp/nitro/internal/router"
	"github.com/nitrohttp/nitro/internal/util"
)

// Config is the server configuration.
type Config = config.Config

// Logger is the structured logger consumed by the server.
type Logger = observability.Logger

// State represents the server state.
type State int32

const (
	// StateStopped indicates the server is stopped.
	StateStopped State = iota
	// StateStarting indicates the server is starting.
	StateStarting
	// StateRunning indicates the server is running.
	StateRunning
	// StateStopping indicates the server is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// allowedMethods is the set of HTTP methods a route may register under.
var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Server owns the route table, the dispatcher, and the HTTP listener
// lifecycle. Routes may be registered before or after Start; the route
// table is safe for concurrent use.
type Server struct {
	config     *config.Config
	logger     observability.Logger
	table      *router.Table[routeEntry]
	dispatcher *dispatcher

	engine         *gin.Engine
	httpServer     *http.Server
	listener       net.Listener
	customListener net.Listener
	rateLimiter    *middleware.RateLimiter

	state     atomic.Int32
	startTime time.Time
	mu        sync.RWMutex
}

// Option is a functional option for configuring the server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithListener supplies a pre-bound listener, overriding the
// configured address. Useful for ephemeral ports.
func WithListener(ln net.Listener) Option {
	return func(s *Server) {
		s.customListener = ln
	}
}

// New creates a new Server from the given configuration. A nil config
// gets the defaults.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		config: cfg,
		logger: observability.NopLogger(),
		table:  router.New[routeEntry](router.WithCacheSize(cfg.RouteCacheSize)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = newDispatcher(s.logger)

	if rl := cfg.RateLimit; rl != nil && rl.Enabled {
		s.rateLimiter = middleware.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.PerClient,
			middleware.WithRateLimiterLogger(s.logger))
	}

	s.state.Store(int32(StateStopped))

	return s, nil
}

// Handle registers a synchronous route. When the handler returns, the
// response is finalized from whatever state it accumulated; a handler
// that blocks past the dispatch timeout gets the timeout fallback.
func (s *Server) Handle(method, pattern string, h Handler) error {
	return s.register(method, pattern, h, false)
}

// HandleAsync registers an asynchronous route. The handler runs on its
// own goroutine and owns the response until it sends or the dispatch
// timeout elapses.
func (s *Server) HandleAsync(method, pattern string, h Handler) error {
	return s.register(method, pattern, h, true)
}

// Get registers a synchronous GET route.
func (s *Server) Get(pattern string, h Handler) error {
	return s.Handle(http.MethodGet, pattern, h)
}

// Post registers a synchronous POST route.
func (s *Server) Post(pattern string, h Handler) error {
	return s.Handle(http.MethodPost, pattern, h)
}

// Put registers a synchronous PUT route.
func (s *Server) Put(pattern string, h Handler) error {
	return s.Handle(http.MethodPut, pattern, h)
}

// Patch registers a synchronous PATCH route.
func (s *Server) Patch(pattern string, h Handler) error {
	return s.Handle(http.MethodPatch, pattern, h)
}

// Delete registers a synchronous DELETE route.
func (s *Server) Delete(pattern string, h Handler) error {
	return s.Handle(http.MethodDelete, pattern, h)
}

// Head registers a synchronous HEAD route.
func (s *Server) Head(pattern string, h Handler) error {
	return s.Handle(http.MethodHead, pattern, h)
}

// Options registers a synchronous OPTIONS route.
func (s *Server) Options(pattern string, h Handler) error {
	return s.Handle(http.MethodOptions, pattern, h)
}

func (s *Server) register(method, pattern string, h Handler, async bool) error {
	if h == nil {
		return fmt.Errorf("%w: handler is required", util.ErrInvalidInput)
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if _, ok := allowedMethods[method]; !ok {
		return fmt.Errorf("%w: unsupported method %q", util.ErrInvalidInput, method)
	}
	return s.table.Register(method, pattern, routeEntry{
		pattern: pattern,
		handler: h,
		async:   async,
	})
}

// Reload applies a new configuration to a running server. Only the
// request-path tunables take effect immediately: dispatch timeout and
// the body size cap. Listener address, route cache size, and rate
// limits require a restart.
func (s *Server) Reload(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is required", util.ErrInvalidInput)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.logger.Info("configuration reloaded",
		observability.Duration("dispatch_timeout", time.Duration(cfg.DispatchTimeout)),
		observability.Int64("max_body_bytes", cfg.MaxBodyBytes),
	)

	return nil
}

// ClearRoutes removes all registered routes and flushes the match
// cache. Requests already dispatched keep their handlers.
func (s *Server) ClearRoutes() {
	s.table.Clear()
	s.logger.Info("route table cleared")
}

// RouteCount returns the number of registered routes.
func (s *Server) RouteCount() int {
	return s.table.Len()
}

// Start binds the listener and begins serving. It returns once the
// listener is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrServerNotStopped
	}

	s.logger.Info("starting server",
		observability.String("addr", s.config.Addr()),
	)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.NoRoute(gin.WrapH(s.buildHandler()))

	listener := s.customListener
	if listener == nil {
		var err error
		listener, err = (&net.ListenConfig{}).Listen(ctx, "tcp", s.config.Addr())
		if err != nil {
			s.state.Store(int32(StateStopped))
			return fmt.Errorf("failed to bind %s: %w", s.config.Addr(), err)
		}
	}

	srv := &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.engine = engine
	s.listener = listener
	s.httpServer = srv
	s.startTime = time.Now()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server terminated", observability.Error(err))
		}
	}()

	s.state.Store(int32(StateRunning))

	s.logger.Info("server started",
		observability.String("addr", s.Addr()),
		observability.Int("routes", s.table.Len()),
	)

	return nil
}

// Stop drains in-flight requests and shuts the listener down. Requests
// still pending after the shutdown grace period are cut off.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrServerNotRunning
	}

	s.logger.Info("stopping server")

	s.mu.RLock()
	srv := s.httpServer
	grace := time.Duration(s.config.ShutdownGrace)
	s.mu.RUnlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, grace)
		defer cancel()
	}

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown incomplete, closing", observability.Error(err))
			_ = srv.Close()
		}
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("server stopped")

	return err
}

// Addr returns the actual listen address, useful when the configured
// port is 0. Empty until the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// State returns the current server state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	return s.State() == StateRunning
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Handler returns the fully assembled HTTP handler, including the
// middleware chain. It serves without a listener, for tests and
// embedding.
func (s *Server) Handler() http.Handler {
	return s.buildHandler()
}

// buildHandler assembles the middleware chain around the dispatch
// endpoint: request ID, logging, metrics, then optional rate limiting.
func (s *Server) buildHandler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.serveRequest)
	if s.rateLimiter != nil {
		h = s.rateLimiter.Middleware()(h)
	}
	h = middleware.Metrics()(h)
	h = middleware.Logging(s.logger)(h)
	h = middleware.RequestID()(h)
	return h
}

// serveRequest is the dynamic dispatch endpoint every request funnels
// into: snapshot the request, match it against the route table, hand
// it to the handler, and park until the response bridge resolves.
func (s *Server) serveRequest(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	timeout := time.Duration(s.config.DispatchTimeout)
	bodyLimit := s.config.MaxBodyBytes
	s.mu.RUnlock()

	body, err := readBody(r, bodyLimit)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large", r.URL.Path)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "Failed to read request body", r.URL.Path)
		return
	}

	entry, params, err := s.table.Match(r.Method, r.URL.Path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Route not found", r.URL.Path)
		return
	}

	req := snapshotRequest(r, body, params)

	ctx := util.ContextWithRoute(r.Context(), entry.pattern)
	s.dispatcher.Dispatch(ctx, entry, req)

	payload, err := req.AwaitResponse(ctx, timeout)
	if err != nil {
		dispatchMetricsInstance().timeouts.Inc()
		s.logger.WithContext(ctx).Error("handler did not resolve response",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.String("route", entry.pattern),
			observability.Error(err),
		)
		writeJSONError(w, http.StatusGatewayTimeout, "Handler timeout", r.URL.Path)
		return
	}

	writePayload(w, payload)
}

var errBodyTooLarge = errors.New("request body too large")

// readBody reads the request body up to the configured cap.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// writePayload copies a finalized response onto the wire. Custom
// headers are applied after the content type, so a handler-supplied
// Content-Type wins.
func writePayload(w http.ResponseWriter, p ResponsePayload) {
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h[0], "Content-Type") {
			w.Header().Set(h[0], h[1])
			continue
		}
		w.Header().Add(h[0], h[1])
	}
	w.WriteHeader(p.Status)
	if len(p.Body) > 0 {
		_, _ = w.Write(p.Body)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message, path string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"path":  path,
	})
}
