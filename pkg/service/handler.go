package service

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/getrestub/restub/pkg/requestlog"
	"github.com/getrestub/restub/pkg/route"
)

// handler dispatches inbound requests against the route list. It holds an
// explicit, narrow view of the owning Service (resolver, delay, tracer,
// request log) rather than capturing the Service itself.
//
// A mutex serializes dispatch: requests are handled one at a time in arrival
// order, so the configured delay blocks every queued connection. The stub is
// meant to be slow and transparent for test observability, not fast.
type handler struct {
	resolver resolver
	delay    time.Duration
	tracer   *tracer
	requests *requestlog.Store

	mu sync.Mutex
}

func newHandler(routes []*route.Route, delay time.Duration, tr *tracer, requests *requestlog.Store) *handler {
	return &handler{
		resolver: resolver{routes: routes},
		delay:    delay,
		tracer:   tr,
		requests: requests,
	}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()

	method, err := route.ParseMethod(r.Method)
	if err != nil {
		// Outside the supported set (PATCH, HEAD, ...): an explicit
		// unsupported-method response, never a crash.
		w.WriteHeader(http.StatusNotImplemented)
		h.tracer.notSupported(r.Method, r.URL.Path)
		h.record(start, r, "", nil, http.StatusNotImplemented)
		return
	}

	payload := h.readPayload(method, r)

	rt := h.resolver.resolve(method, r.URL.Path)
	if rt == nil {
		w.WriteHeader(http.StatusNotFound)
		h.tracer.notFound(r.Method, r.URL.Path)
		h.record(start, r, "", payload, http.StatusNotFound)
		return
	}

	header := w.Header()
	for _, hd := range rt.Headers() {
		header.Set(hd.Name, hd.Value)
	}
	w.WriteHeader(rt.Status())

	// The delay sits between headers and body on purpose, simulating a slow
	// upstream for exercising client-side timeout behavior.
	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	if body := rt.Body(); len(body) > 0 {
		_, _ = w.Write(body)
	}

	h.tracer.exchange(r, rt, payload)
	h.record(start, r, rt.String(), payload, rt.Status())
}

// readPayload drains the request body for the methods that carry one.
func (h *handler) readPayload(method route.Method, r *http.Request) []byte {
	if method == route.GET || r.Body == nil {
		return nil
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	return payload
}

func (h *handler) record(start time.Time, r *http.Request, matched string, payload []byte, status int) {
	if h.requests == nil {
		return
	}
	headers := make(map[string][]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = append([]string(nil), values...)
	}
	h.requests.Record(&requestlog.Entry{
		Timestamp:    start,
		Method:       r.Method,
		Path:         r.URL.Path,
		Headers:      headers,
		Body:         string(payload),
		MatchedRoute: matched,
		Status:       status,
		Duration:     time.Since(start),
	})
}
