// Package module mounts groups of routes under single-level path prefixes,
// each with its own middleware stack.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/accord/pkg/middleware"
)

// Route binds a method and pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Group is a set of routes sharing a prefix. Child prefixes nest under the parent's.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Module serves its routes with the mount prefix stripped from the request path.
type Module struct {
	prefix     string
	mux        *http.ServeMux
	middleware middleware.System
	patterns   []string
}

// New creates a Module for a single-level prefix such as "/api".
// It returns an error when the prefix is empty, relative, or nested.
func New(prefix string) (*Module, error) {
	if prefix == "" || !strings.HasPrefix(prefix, "/") || strings.Count(prefix, "/") != 1 {
		return nil, fmt.Errorf("invalid module prefix %q: must be a single-level path like /api", prefix)
	}
	return &Module{
		prefix:     prefix,
		mux:        http.NewServeMux(),
		middleware: middleware.New(),
	}, nil
}

// Prefix returns the mount prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module stack.
func (m *Module) Use(mw middleware.Middleware) {
	m.middleware.Use(mw)
}

// Register adds every route in groups to the module.
func (m *Module) Register(groups ...Group) {
	for _, g := range groups {
		m.register("", g)
	}
}

// Patterns lists the registered patterns including the mount prefix.
func (m *Module) Patterns() []string {
	return m.patterns
}

func (m *Module) register(parent string, g Group) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		pattern := r.Method + " " + prefix + r.Pattern
		m.mux.HandleFunc(pattern, r.Handler)
		m.patterns = append(m.patterns, r.Method+" "+m.prefix+prefix+r.Pattern)
	}
	for _, child := range g.Children {
		m.register(prefix, child)
	}
}

// ServeHTTP strips the prefix and dispatches through the middleware stack.
func (m *Module) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, m.prefix)
	if path == "" {
		path = "/"
	}

	inner := req.Clone(req.Context())
	inner.URL = new(url.URL)
	*inner.URL = *req.URL
	inner.URL.Path = path
	inner.URL.RawPath = ""

	m.middleware.Apply(m.mux).ServeHTTP(w, inner)
}
