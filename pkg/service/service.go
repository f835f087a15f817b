// Package service runs an embeddable HTTP stub server: a set of declarative
// routes answered deterministically on a local port, for test suites that
// need a fake REST dependency without a real backend.
package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/getrestub/restub/pkg/logging"
	"github.com/getrestub/restub/pkg/requestlog"
	"github.com/getrestub/restub/pkg/route"
)

// Lifecycle and resource errors.
var (
	// ErrNoRoutes is returned by Start when no routes were registered.
	ErrNoRoutes = errors.New("no routes defined")

	// ErrAlreadyRunning is returned by Start on a running service.
	ErrAlreadyRunning = errors.New("service is already running")

	// ErrAddrInUse is returned when the port could not be bound after all
	// retry attempts.
	ErrAddrInUse = errors.New("port already in use or operation not permitted")
)

// A just-closed socket can linger in an address-in-use state, so binding
// retries a few times before giving up.
const (
	bindAttempts = 4
	bindBackoff  = 500 * time.Millisecond
)

// Service owns the configuration, the ordered route list, and the listening
// socket of one stub server instance.
//
// Register all routes before Start: the route list is not locked against the
// serving worker.
type Service struct {
	cfg      *Config
	routes   []*route.Route
	log      *slog.Logger
	requests *requestlog.Store

	mu         sync.Mutex
	httpServer *http.Server
	running    bool
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the sink for trace diagnostics. Without it, trace output
// goes to a default stderr text logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRequestLog sets the store that records served exchanges.
// Without it, a store with the default capacity is created.
func WithRequestLog(store *requestlog.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.requests = store
		}
	}
}

// New creates a Service with the given configuration and initial routes.
// A nil cfg means DefaultConfig. The configuration is validated before any
// socket is opened.
func New(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		if cfg.Trace {
			s.log = logging.New(logging.Config{})
		} else {
			s.log = logging.Nop()
		}
	}
	if s.requests == nil {
		s.requests = requestlog.NewStore(requestlog.DefaultCapacity)
	}
	return s, nil
}

// NewWithRoutes creates a Service from route literals in the flat form
// (method, path[, payload[, headers[, status]]]).
func NewWithRoutes(cfg *Config, literals [][]any, opts ...Option) (*Service, error) {
	s, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	for _, literal := range literals {
		rt, err := route.Cast(literal)
		if err != nil {
			return nil, err
		}
		s.routes = append(s.routes, rt)
	}
	return s, nil
}

// Add appends a route to the list. Order is significant: resolution is
// first-match-wins, so register specific patterns before general ones.
func (s *Service) Add(rt *route.Route) {
	if rt != nil {
		s.routes = append(s.routes, rt)
	}
}

// Get registers a GET route.
func (s *Service) Get(path string, payload any, headers map[string]string, status int) error {
	return s.add(route.GET, path, payload, headers, status)
}

// Post registers a POST route.
func (s *Service) Post(path string, payload any, headers map[string]string, status int) error {
	return s.add(route.POST, path, payload, headers, status)
}

// Put registers a PUT route.
func (s *Service) Put(path string, payload any, headers map[string]string, status int) error {
	return s.add(route.PUT, path, payload, headers, status)
}

// Delete registers a DELETE route.
func (s *Service) Delete(path string, payload any, headers map[string]string, status int) error {
	return s.add(route.DELETE, path, payload, headers, status)
}

func (s *Service) add(method route.Method, path string, payload any, headers map[string]string, status int) error {
	rt, err := route.New(string(method), path, payload, headers, status)
	if err != nil {
		return err
	}
	s.routes = append(s.routes, rt)
	return nil
}

// Routes returns the number of registered routes.
func (s *Service) Routes() int { return len(s.routes) }

// Start binds the listening socket and begins serving on one background
// worker. It fails with ErrNoRoutes when the route list is empty, and with
// ErrAddrInUse when the port stays busy through all bind attempts.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if len(s.routes) == 0 {
		return ErrNoRoutes
	}

	ln, err := s.listen()
	if err != nil {
		return err
	}

	if s.cfg.Secure {
		cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("%w: loading key pair: %v", ErrConfiguration, err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	}

	tr := newTracer(s.log, s.cfg.Trace)
	s.httpServer = &http.Server{
		Handler: newHandler(s.routes, s.cfg.Delay, tr, s.requests),
	}

	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve error", "port", s.cfg.Port, "error", err)
		}
	}()

	s.running = true
	tr.started(s.cfg.Port, s.Host())
	return nil
}

// listen acquires the loopback socket, retrying only on address-in-use.
func (s *Service) listen() (net.Listener, error) {
	addr := net.JoinHostPort("localhost", strconv.Itoa(s.cfg.Port))

	var err error
	for attempt := 0; attempt < bindAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(bindBackoff)
		}
		var ln net.Listener
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
}

// Stop releases the socket and ends the serving worker. In-flight requests
// are not actively interrupted: they are drained with a grace period sized to
// the configured delay, and connections are force-closed only if draining
// exceeds it. Stopping a service that is not running is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	// A request sleeping in the delay window must still get its response.
	grace := s.cfg.Delay + time.Second
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		err = s.httpServer.Close()
	}
	s.httpServer = nil
	s.running = false
	newTracer(s.log, s.cfg.Trace).stopped(s.cfg.Port)
	return err
}

// Run starts the service, executes fn, and guarantees Stop on every exit
// path, including a panic inside fn. It returns the start error, or fn's.
func (s *Service) Run(fn func() error) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer func() { _ = s.Stop() }()
	return fn()
}

// IsRunning reports whether the service is serving.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Port returns the configured port.
func (s *Service) Port() int { return s.cfg.Port }

// Host composes the service base URL, e.g. "http://localhost:8081".
func (s *Service) Host() string {
	return fmt.Sprintf("%s://localhost:%d", s.cfg.Scheme(), s.cfg.Port)
}

// RequestLog exposes the store of served exchanges.
func (s *Service) RequestLog() *requestlog.Store { return s.requests }
