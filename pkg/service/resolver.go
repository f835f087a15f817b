package service

import "github.com/getrestub/restub/pkg/route"

// resolver performs first-match lookup over an ordered route list.
//
// The scan is intentionally linear and order-sensitive: the first route whose
// method and pattern match wins, not the most specific one. Callers register
// more specific patterns before more general ones.
type resolver struct {
	routes []*route.Route
}

// resolve returns the first matching route, or nil when nothing matches.
func (r resolver) resolve(method route.Method, path string) *route.Route {
	for _, rt := range r.routes {
		if rt.Matches(method, path) {
			return rt
		}
	}
	return nil
}
