// Package route provides the declarative request/response rules served by a
// stub service.
//
// A Route pairs an HTTP method and a path pattern with a canned response.
// The path is a regular expression matched against the start of the request
// path (anchor with $ for exact matching). When a payload is supplied, the
// Content-type and Content-length headers are inferred from it and may be
// overridden by caller-supplied headers.
package route

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Error categories for route construction failures. All errors returned by
// New and Cast wrap one of these.
var (
	// ErrType marks a wrong-type failure (payload, headers, status).
	ErrType = errors.New("invalid type")
	// ErrValue marks a well-typed but invalid value (unknown method, empty path).
	ErrValue = errors.New("invalid value")
)

// Method is an HTTP access method supported by the stub server.
type Method string

// The four supported methods.
const (
	GET    Method = "GET"
	POST   Method = "POST"
	PUT    Method = "PUT"
	DELETE Method = "DELETE"
)

// Methods lists the allowed methods in declaration order.
var Methods = []Method{GET, POST, PUT, DELETE}

// ParseMethod normalizes a method name case-insensitively and rejects
// anything outside the supported set.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToUpper(name))
	for _, allowed := range Methods {
		if m == allowed {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: method %q is not allowed", ErrValue, name)
}

// DefaultStatus is the response status used when none is given.
const DefaultStatus = 200

// Header is a single response header. Headers are kept as an ordered list so
// responses replay them in the stored order.
type Header struct {
	Name  string
	Value string
}

// Route is an immutable mapping from method plus path pattern to a canned
// response. Construct with New or Cast; a Route is never mutated afterwards.
type Route struct {
	method  Method
	path    string
	pattern *regexp.Regexp
	body    []byte
	headers []Header
	status  int
}

// New builds a Route.
//
// The method is matched case-insensitively against the supported set and
// stored uppercase. The path is a regular expression and must be non-empty
// after trimming. A nil or empty payload means no body; otherwise the body
// bytes and the Content-type/Content-length headers are produced by Negotiate
// before caller headers merge, so callers can override either. A zero status
// means DefaultStatus; any other status must lie in 100-999.
func New(method, path string, payload any, headers map[string]string, status int) (*Route, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: path cannot be empty", ErrValue)
	}
	// The pattern must match at the start of the request path but need not
	// consume it; callers anchor with $ for exact matching.
	pattern, err := regexp.Compile("^(?:" + path + ")")
	if err != nil {
		return nil, fmt.Errorf("%w: path pattern %q does not compile: %v", ErrValue, path, err)
	}

	r := &Route{
		method:  m,
		path:    path,
		pattern: pattern,
		status:  DefaultStatus,
	}

	if hasPayload(payload) {
		body, ctype, err := Negotiate(payload)
		if err != nil {
			return nil, err
		}
		r.body = body
		r.headers = []Header{
			{Name: "Content-type", Value: ctype},
			{Name: "Content-length", Value: strconv.Itoa(len(body))},
		}
	}

	r.mergeHeaders(headers)

	if status != 0 {
		if status < 100 || status > 999 {
			return nil, fmt.Errorf("%w: status code %d out of range", ErrValue, status)
		}
		r.status = status
	}
	return r, nil
}

// hasPayload reports whether the payload carries content. Empty strings,
// byte slices, and maps produce no body and no inferred headers, the same as
// nil.
func hasPayload(payload any) bool {
	switch p := payload.(type) {
	case nil:
		return false
	case string:
		return p != ""
	case []byte:
		return len(p) > 0
	case map[string]any:
		return len(p) > 0
	case map[string]string:
		return len(p) > 0
	}
	return true
}

// mergeHeaders overlays caller-supplied headers onto the inferred ones.
// An exact name match replaces the value in place; new names append in
// sorted order so the stored order is deterministic.
func (r *Route) mergeHeaders(headers map[string]string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

merge:
	for _, name := range names {
		for i := range r.headers {
			if r.headers[i].Name == name {
				r.headers[i].Value = headers[name]
				continue merge
			}
		}
		r.headers = append(r.headers, Header{Name: name, Value: headers[name]})
	}
}

// Cast builds a Route from the flat literal form
// (method, path[, payload[, headers[, status]]]).
func Cast(seq []any) (*Route, error) {
	if len(seq) < 2 {
		return nil, fmt.Errorf("%w: route needs at least a method and a path", ErrValue)
	}

	method, err := castString(seq[0], "method")
	if err != nil {
		return nil, err
	}
	path, err := castString(seq[1], "path")
	if err != nil {
		return nil, err
	}

	var payload any
	if len(seq) > 2 {
		payload = seq[2]
	}

	var headers map[string]string
	if len(seq) > 3 && seq[3] != nil {
		headers, err = castHeaders(seq[3])
		if err != nil {
			return nil, err
		}
	}

	status := 0
	if len(seq) > 4 && seq[4] != nil {
		status, err = castStatus(seq[4])
		if err != nil {
			return nil, err
		}
	}

	return New(method, path, payload, headers, status)
}

func castString(v any, field string) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case Method:
		return string(s), nil
	default:
		return "", fmt.Errorf("%w: %s should be a string, got %T", ErrType, field, v)
	}
}

func castHeaders(v any) (map[string]string, error) {
	switch h := v.(type) {
	case map[string]string:
		return h, nil
	case map[string]any:
		headers := make(map[string]string, len(h))
		for name, value := range h {
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: header %q value should be a string, got %T", ErrType, name, value)
			}
			headers[name] = s
		}
		return headers, nil
	default:
		return nil, fmt.Errorf("%w: headers should be a map, got %T", ErrType, v)
	}
}

// castStatus accepts any integer-convertible status: native ints, whole
// floats (as decoded from JSON/YAML), or numeric strings.
func castStatus(v any) (int, error) {
	switch s := v.(type) {
	case int:
		return s, nil
	case int64:
		return int(s), nil
	case float64:
		if s != float64(int(s)) {
			return 0, fmt.Errorf("%w: status code should be an integer, got %v", ErrType, s)
		}
		return int(s), nil
	case string:
		status, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: status code should be an integer, got %q", ErrType, s)
		}
		return status, nil
	default:
		return 0, fmt.Errorf("%w: status code should be an integer, got %T", ErrType, v)
	}
}

// Method returns the stored (uppercase) method.
func (r *Route) Method() Method { return r.method }

// Path returns the path pattern as given at construction.
func (r *Route) Path() string { return r.path }

// Body returns the response body bytes, nil when no payload was supplied.
func (r *Route) Body() []byte { return r.body }

// Status returns the response status code.
func (r *Route) Status() int { return r.status }

// Headers returns the response headers in stored order.
func (r *Route) Headers() []Header {
	headers := make([]Header, len(r.headers))
	copy(headers, r.headers)
	return headers
}

// HeaderValue looks up a header by exact name.
func (r *Route) HeaderValue(name string) (string, bool) {
	for _, h := range r.headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Matches reports whether the request path matches the route pattern at its
// start. Patterns that must consume the whole path anchor with $ explicitly.
func (r *Route) Matches(method Method, path string) bool {
	return r.method == method && r.pattern.MatchString(path)
}

func (r *Route) String() string {
	return fmt.Sprintf("Route[method=%s, path=%s]", r.method, r.path)
}
