package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getrestub/restub/pkg/route"
)

// serverName identifies the service in traced response headers.
const serverName = "Restub Service"

// Markers for the two columns of the trace record and the payload line.
const (
	markRequest  = "⚫" // black circle
	markResponse = "⚪" // white circle
	markPayload  = "⤇" // double arrow
)

// tracer emits the human-readable diagnostic records of served exchanges.
// It is purely observational: it never alters response content or timing.
type tracer struct {
	log     *slog.Logger
	enabled bool
}

func newTracer(log *slog.Logger, enabled bool) *tracer {
	return &tracer{log: log, enabled: enabled}
}

func (t *tracer) started(port int, host string) {
	if t.enabled {
		t.log.Info(fmt.Sprintf("Service:%d is running at %s", port, host))
	}
}

func (t *tracer) stopped(port int) {
	if t.enabled {
		t.log.Info(fmt.Sprintf("Service:%d was stopped", port))
	}
}

func (t *tracer) notFound(method, path string) {
	if t.enabled {
		t.log.Info(fmt.Sprintf("Not found %s %q", method, path))
	}
}

func (t *tracer) notSupported(method, path string) {
	if t.enabled {
		t.log.Info(fmt.Sprintf("Method %s not supported, requested on %q", method, path))
	}
}

// exchange logs one served request/response pair: the start line, the two
// header columns matched positionally, and the decoded request payload for
// methods that carry one.
func (t *tracer) exchange(r *http.Request, rt *route.Route, payload []byte) {
	if !t.enabled {
		return
	}
	record := formatExchange(r.Method, r.URL.Path, rt.Status(),
		requestHeaderLines(r), responseHeaderLines(rt), payload)
	t.log.Info(record)
}

// requestHeaderLines renders the inbound headers as "Name: value" lines,
// host first, the rest sorted for a stable record.
func requestHeaderLines(r *http.Request) []string {
	lines := make([]string, 0, len(r.Header)+1)
	if r.Host != "" {
		lines = append(lines, "Host: "+r.Host)
	}
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, name+": "+strings.Join(r.Header[name], ", "))
	}
	return lines
}

// responseHeaderLines renders the outbound headers: the server identity and
// date first, then the route's headers in their stored order.
func responseHeaderLines(rt *route.Route) []string {
	lines := []string{
		"Server: " + serverName,
		"Date: " + time.Now().UTC().Format(http.TimeFormat),
	}
	for _, h := range rt.Headers() {
		lines = append(lines, h.Name+": "+h.Value)
	}
	return lines
}

// formatExchange builds the multi-line trace record. Request and response
// headers are paired positionally, padded to the longest request line.
func formatExchange(method, path string, status int, reqHeaders, resHeaders []string, payload []byte) string {
	padding := utf8.RuneCountInString("Request headers:")
	for _, h := range reqHeaders {
		if n := utf8.RuneCountInString(h); n > padding {
			padding = n
		}
	}
	padding += 10

	var b strings.Builder
	fmt.Fprintf(&b, "Method %s %q, status: %d\n", method, path, status)
	b.WriteString(padRight("Request headers:", padding))
	b.WriteString("Response headers:\n")

	rows := len(reqHeaders)
	if len(resHeaders) > rows {
		rows = len(resHeaders)
	}
	for i := 0; i < rows; i++ {
		var req, res string
		if i < len(reqHeaders) {
			req = markRequest + " " + reqHeaders[i]
		}
		if i < len(resHeaders) {
			res = markResponse + " " + resHeaders[i]
		}
		b.WriteString(padRight(req, padding-1))
		b.WriteString(" " + res + "\n")
	}

	if len(payload) > 0 {
		fmt.Fprintf(&b, "%s Payload: %s", markPayload, payload)
	}
	return strings.TrimRight(b.String(), "\n")
}

// padRight pads s with spaces to the given display width, counting runes
// rather than bytes so the column markers line up.
func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
