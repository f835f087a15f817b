// Package stubtest is a test helper for running a stub service inside Go
// tests. It picks a free port, registers cleanup with the test, and offers
// call assertions over the request log.
package stubtest

import (
	"net"
	"testing"
	"time"

	"github.com/getrestub/restub/pkg/logging"
	"github.com/getrestub/restub/pkg/requestlog"
	"github.com/getrestub/restub/pkg/service"
)

// Stub wraps a service instance bound to a test's lifetime.
type Stub struct {
	t   testing.TB
	svc *service.Service
}

// New creates a stub on a free loopback port. The underlying service is
// stopped automatically when the test completes.
func New(t testing.TB, opts ...ConfigOption) *Stub {
	t.Helper()

	cfg := service.DefaultConfig()
	cfg.Port = pickPort(t)
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := service.New(cfg, service.WithLogger(logging.Nop()))
	if err != nil {
		t.Fatalf("failed to create stub service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	return &Stub{t: t, svc: svc}
}

// ConfigOption adjusts the stub's service configuration before creation.
type ConfigOption func(*service.Config)

// WithDelay sets an artificial response delay.
func WithDelay(d time.Duration) ConfigOption {
	return func(cfg *service.Config) { cfg.Delay = d }
}

// WithTLS serves the stub over HTTPS using the given key pair.
func WithTLS(keyFile, certFile string) ConfigOption {
	return func(cfg *service.Config) {
		cfg.Secure = true
		cfg.KeyFile = keyFile
		cfg.CertFile = certFile
	}
}

// Get registers a GET route. Route errors fail the test immediately.
func (s *Stub) Get(path string, payload any) *Stub {
	return s.add("GET", path, payload, nil, 0)
}

// Post registers a POST route.
func (s *Stub) Post(path string, payload any, status int) *Stub {
	return s.add("POST", path, payload, nil, status)
}

// Put registers a PUT route.
func (s *Stub) Put(path string, payload any, status int) *Stub {
	return s.add("PUT", path, payload, nil, status)
}

// Delete registers a DELETE route.
func (s *Stub) Delete(path string, status int) *Stub {
	return s.add("DELETE", path, nil, nil, status)
}

// Route registers a route with full control over headers and status.
func (s *Stub) Route(method, path string, payload any, headers map[string]string, status int) *Stub {
	return s.add(method, path, payload, headers, status)
}

func (s *Stub) add(method, path string, payload any, headers map[string]string, status int) *Stub {
	s.t.Helper()
	var err error
	switch method {
	case "GET":
		err = s.svc.Get(path, payload, headers, status)
	case "POST":
		err = s.svc.Post(path, payload, headers, status)
	case "PUT":
		err = s.svc.Put(path, payload, headers, status)
	case "DELETE":
		err = s.svc.Delete(path, payload, headers, status)
	default:
		s.t.Fatalf("unsupported method %q", method)
		return s
	}
	if err != nil {
		s.t.Fatalf("failed to register %s %s: %v", method, path, err)
	}
	return s
}

// Start begins serving and returns the base URL.
func (s *Stub) Start() string {
	s.t.Helper()
	if err := s.svc.Start(); err != nil {
		s.t.Fatalf("failed to start stub service: %v", err)
	}
	return s.svc.Host()
}

// URL returns the stub's base URL.
func (s *Stub) URL() string { return s.svc.Host() }

// Service exposes the underlying service for advanced setups.
func (s *Stub) Service() *service.Service { return s.svc }

// Requests returns the logged exchanges, oldest first, optionally filtered.
func (s *Stub) Requests(filter *requestlog.Filter) []*requestlog.Entry {
	return s.svc.RequestLog().List(filter)
}

// AssertCalled asserts that method+path was served at least once.
func (s *Stub) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if n := s.countCalls(method, path); n == 0 {
		t.Errorf("expected %s %s to be called, but it was not", method, path)
	}
}

// AssertCalledTimes asserts that method+path was served exactly n times.
func (s *Stub) AssertCalledTimes(t testing.TB, method, path string, times int) {
	t.Helper()
	if n := s.countCalls(method, path); n != times {
		t.Errorf("expected %s %s to be called %d times, but was called %d times",
			method, path, times, n)
	}
}

// AssertNotCalled asserts that method+path was never served.
func (s *Stub) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if n := s.countCalls(method, path); n > 0 {
		t.Errorf("expected %s %s to not be called, but it was called %d times",
			method, path, n)
	}
}

func (s *Stub) countCalls(method, path string) int {
	return len(s.svc.RequestLog().List(&requestlog.Filter{Method: method, Path: path}))
}

func pickPort(t testing.TB) int {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to pick a free port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}
