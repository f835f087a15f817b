// Package config loads stub definitions from YAML files: one server block
// plus an ordered route list, in either mapping or flat-tuple form.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/getrestub/restub/pkg/route"
	"github.com/getrestub/restub/pkg/service"
)

// File is the top-level document of a stub definition file.
type File struct {
	Server ServerConfig  `yaml:"server"`
	Routes []RouteConfig `yaml:"routes"`
}

// ServerConfig is the server block. Every field is optional; zero values fall
// back to the service defaults.
type ServerConfig struct {
	Port  int       `yaml:"port"`
	Trace bool      `yaml:"trace"`
	Delay Delay     `yaml:"delay"`
	TLS   TLSConfig `yaml:"tls"`
}

// TLSConfig enables secure mode when both files are given.
type TLSConfig struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
}

// Delay is a response delay that accepts either a duration string ("250ms")
// or a bare number of seconds (0.5).
type Delay time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Delay) UnmarshalYAML(node *yaml.Node) error {
	var asDuration string
	if err := node.Decode(&asDuration); err == nil {
		if parsed, err := time.ParseDuration(asDuration); err == nil {
			*d = Delay(parsed)
			return nil
		}
	}
	var seconds float64
	if err := node.Decode(&seconds); err == nil {
		*d = Delay(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid delay %q: want a duration string or seconds", node.Value)
}

// RouteConfig is one route entry. Two YAML shapes are accepted:
//
//	- method: GET
//	  path: /users$
//	  payload: {...}
//	  headers: {X-A: "1"}
//	  status: 200
//
//	- [GET, /users$, payload, headers, status]
//
// The flat form follows the same positional rules as route.Cast: method and
// path are required, the rest optional.
type RouteConfig struct {
	Method  string         `yaml:"method"`
	Path    string         `yaml:"path"`
	Payload any            `yaml:"payload"`
	Headers map[string]any `yaml:"headers"`
	Status  int            `yaml:"status"`

	flat []any
}

// UnmarshalYAML implements yaml.Unmarshaler, accepting both shapes.
func (rc *RouteConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&rc.flat)
	}

	// Plain struct decode; an alias type avoids recursing into this method.
	type mapping RouteConfig
	var m mapping
	if err := node.Decode(&m); err != nil {
		return err
	}
	*rc = RouteConfig(m)
	return nil
}

// Route materializes the entry.
func (rc *RouteConfig) Route() (*route.Route, error) {
	if rc.flat != nil {
		return route.Cast(rc.flat)
	}

	headers := make(map[string]string, len(rc.Headers))
	for name, value := range rc.Headers {
		headers[name] = fmt.Sprint(value)
	}
	if len(headers) == 0 {
		headers = nil
	}
	return route.New(rc.Method, rc.Path, rc.Payload, headers, rc.Status)
}

// ServiceConfig converts the server block to a service configuration,
// applying defaults for omitted fields.
func (f *File) ServiceConfig() *service.Config {
	cfg := service.DefaultConfig()
	if f.Server.Port != 0 {
		cfg.Port = f.Server.Port
	}
	cfg.Trace = f.Server.Trace
	cfg.Delay = time.Duration(f.Server.Delay)
	if f.Server.TLS.Key != "" || f.Server.TLS.Cert != "" {
		cfg.Secure = true
		cfg.KeyFile = f.Server.TLS.Key
		cfg.CertFile = f.Server.TLS.Cert
	}
	return cfg
}

// RouteList materializes every route entry, preserving file order.
func (f *File) RouteList() ([]*route.Route, error) {
	routes := make([]*route.Route, 0, len(f.Routes))
	for i := range f.Routes {
		rt, err := f.Routes[i].Route()
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		routes = append(routes, rt)
	}
	return routes, nil
}
