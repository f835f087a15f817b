package service

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getrestub/restub/pkg/route"
	"github.com/getrestub/restub/pkg/tlsutil"
)

// freePort grabs an ephemeral port and releases it so the service under test
// can bind it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

// newTestService builds a stopped service on a free port and registers Stop
// as cleanup.
func newTestService(t *testing.T, cfg *Config, opts ...Option) *Service {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.Port = freePort(t)
	svc, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestService_Lifecycle(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/ping$", "pong", nil, 0))

	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	res, body := get(t, svc.Host()+"/ping")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "pong", body)

	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())

	// Stopping again is a no-op
	assert.NoError(t, svc.Stop())
}

func TestService_StartWithoutRoutes(t *testing.T) {
	svc := newTestService(t, nil)
	err := svc.Start()
	require.ErrorIs(t, err, ErrNoRoutes)
	assert.False(t, svc.IsRunning())
}

func TestService_StartTwice(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/a", nil, nil, 0))
	require.NoError(t, svc.Start())
	assert.ErrorIs(t, svc.Start(), ErrAlreadyRunning)
}

func TestService_NotFoundHasEmptyBody(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/known$", "hello", nil, 0))
	require.NoError(t, svc.Start())

	res, body := get(t, svc.Host()+"/unknown")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Empty(t, body)
}

func TestService_UnsupportedMethod(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/thing", nil, nil, 0))
	require.NoError(t, svc.Start())

	req, err := http.NewRequest(http.MethodPatch, svc.Host()+"/thing", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotImplemented, res.StatusCode)
}

func TestService_RouteHeadersAndStatus(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Post("/items$", map[string]any{"id": 7},
		map[string]string{"X-Request-Id": "abc"}, http.StatusCreated))
	require.NoError(t, svc.Start())

	res, err := http.Post(svc.Host()+"/items", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, "abc", res.Header.Get("X-Request-Id"))
	assert.JSONEq(t, `{"id":7}`, string(body))
}

func TestService_Delay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delay = 500 * time.Millisecond
	svc := newTestService(t, cfg)
	require.NoError(t, svc.Get("/slow", "late", nil, 0))
	require.NoError(t, svc.Start())

	start := time.Now()
	_, body := get(t, svc.Host()+"/slow")
	elapsed := time.Since(start)

	assert.Equal(t, "late", body)
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
}

func TestService_StopDrainsInFlightRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delay = 500 * time.Millisecond
	svc := newTestService(t, cfg)
	require.NoError(t, svc.Get("/slow", "late", nil, 0))
	require.NoError(t, svc.Start())

	type result struct {
		body string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		res, err := http.Get(svc.Host() + "/slow")
		if err != nil {
			done <- result{err: err}
			return
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		done <- result{body: string(body), err: err}
	}()

	// Stop while the request is sleeping in the delay window; the client
	// must still receive its response.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, svc.Stop())
	assert.False(t, svc.IsRunning())

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "late", r.body)
}

func TestService_PortInUse(t *testing.T) {
	port := freePort(t)
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	require.NoError(t, err)
	defer ln.Close()

	svc, err := New(&Config{Port: port})
	require.NoError(t, err)
	require.NoError(t, svc.Get("/a", nil, nil, 0))

	start := time.Now()
	err = svc.Start()
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrAddrInUse)
	assert.False(t, svc.IsRunning())
	// Three backoff sleeps between the four attempts
	assert.GreaterOrEqual(t, elapsed, 3*bindBackoff)
}

func TestService_PortFreedDuringRetry(t *testing.T) {
	port := freePort(t)
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	require.NoError(t, err)

	svc, err := New(&Config{Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	require.NoError(t, svc.Get("/a", "ok", nil, 0))

	go func() {
		time.Sleep(bindBackoff)
		_ = ln.Close()
	}()

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
}

func TestService_Secure(t *testing.T) {
	cert, err := tlsutil.GenerateSelfSignedCert(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")
	require.NoError(t, cert.WriteFiles(certFile, keyFile))

	cfg := DefaultConfig()
	cfg.Secure = true
	cfg.CertFile = certFile
	cfg.KeyFile = keyFile
	svc := newTestService(t, cfg)
	require.NoError(t, svc.Get("/secure$", "locked", nil, 0))
	require.NoError(t, svc.Start())

	assert.Equal(t, fmt.Sprintf("https://localhost:%d", svc.Port()), svc.Host())

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	res, err := client.Get(svc.Host() + "/secure")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "locked", string(body))
}

func TestService_SecureWithoutFiles(t *testing.T) {
	cfg := &Config{Port: DefaultPort, Secure: true}
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestService_Run(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/run$", "scoped", nil, 0))

	var body string
	err := svc.Run(func() error {
		var res *http.Response
		res, body = get(t, svc.Host()+"/run")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "scoped", body)
	assert.False(t, svc.IsRunning(), "Run must stop the service on return")
}

func TestService_RunStopsOnError(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/a", nil, nil, 0))

	boom := errors.New("boom")
	err := svc.Run(func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, svc.IsRunning())
}

func TestService_RunStopsOnPanic(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/a", nil, nil, 0))

	assert.Panics(t, func() {
		_ = svc.Run(func() error { panic("worker exploded") })
	})
	assert.False(t, svc.IsRunning())
}

func TestService_RequestLog(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Get("/logged$", "yes", nil, 0))
	require.NoError(t, svc.Start())

	get(t, svc.Host()+"/logged")
	get(t, svc.Host()+"/missing")

	entries := svc.RequestLog().List(nil)
	require.Len(t, entries, 2)
	assert.Equal(t, "/logged", entries[0].Path)
	assert.Equal(t, http.StatusOK, entries[0].Status)
	assert.NotEmpty(t, entries[0].MatchedRoute)
	assert.Equal(t, "/missing", entries[1].Path)
	assert.Equal(t, http.StatusNotFound, entries[1].Status)
	assert.Empty(t, entries[1].MatchedRoute)
}

func TestService_RequestLogCapturesPayload(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.Put("/items/1$", nil, nil, http.StatusNoContent))
	require.NoError(t, svc.Start())

	req, err := http.NewRequest(http.MethodPut, svc.Host()+"/items/1", strings.NewReader(`{"name":"widget"}`))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	entries := svc.RequestLog().List(nil)
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"name":"widget"}`, entries[0].Body)
}

func TestNewWithRoutes(t *testing.T) {
	cfg := &Config{Port: freePort(t)}
	svc, err := NewWithRoutes(cfg, [][]any{
		{"GET", "/first$", "one"},
		{"POST", "/second$", map[string]string{"k": "v"}, map[string]string{"X-A": "1"}, 202},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })

	assert.Equal(t, 2, svc.Routes())
	require.NoError(t, svc.Start())

	_, body := get(t, svc.Host()+"/first")
	assert.Equal(t, "one", body)
}

func TestNewWithRoutes_BadLiteral(t *testing.T) {
	_, err := NewWithRoutes(DefaultConfig(), [][]any{{"GET"}})
	assert.ErrorIs(t, err, route.ErrValue)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(&Config{Port: -1})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(&Config{Port: DefaultPort, Delay: -time.Second})
	assert.ErrorIs(t, err, ErrConfiguration)
}
