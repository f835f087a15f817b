package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getrestub/restub/pkg/route"
)

func mustRoute(t *testing.T, method, path string) *route.Route {
	t.Helper()
	rt, err := route.New(method, path, nil, nil, 0)
	require.NoError(t, err)
	return rt
}

func TestResolve_FirstMatchWins(t *testing.T) {
	r := resolver{routes: []*route.Route{
		mustRoute(t, "GET", "/a/$"),
		mustRoute(t, "GET", "/a/.*"),
	}}

	// "/a/b" fails the anchored pattern and falls through to the wildcard
	rt := r.resolve(route.GET, "/a/b")
	require.NotNil(t, rt)
	assert.Equal(t, "/a/.*", rt.Path())

	// "/a/" satisfies the first pattern, so the wildcard never gets a look
	rt = r.resolve(route.GET, "/a/")
	require.NotNil(t, rt)
	assert.Equal(t, "/a/$", rt.Path())
}

func TestResolve_OrderSensitive(t *testing.T) {
	broad := mustRoute(t, "GET", "/api")
	narrow := mustRoute(t, "GET", "/api/users")

	r := resolver{routes: []*route.Route{broad, narrow}}

	// The broad prefix pattern shadows the narrow one when registered first.
	rt := r.resolve(route.GET, "/api/users")
	require.NotNil(t, rt)
	assert.Same(t, broad, rt)
}

func TestResolve_MethodDiscriminates(t *testing.T) {
	r := resolver{routes: []*route.Route{
		mustRoute(t, "GET", "/thing"),
		mustRoute(t, "POST", "/thing"),
	}}

	rt := r.resolve(route.POST, "/thing")
	require.NotNil(t, rt)
	assert.Equal(t, route.POST, rt.Method())
}

func TestResolve_NoMatch(t *testing.T) {
	r := resolver{routes: []*route.Route{mustRoute(t, "GET", "/a")}}

	assert.Nil(t, r.resolve(route.GET, "/b"))
	assert.Nil(t, r.resolve(route.DELETE, "/a"))
}

func TestResolve_EmptyList(t *testing.T) {
	r := resolver{}
	assert.Nil(t, r.resolve(route.GET, "/anything"))
}
