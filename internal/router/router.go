package router

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/simman/hostguard/internal/config"
	"github.com/simman/hostguard/internal/router/matchers"
)

// Router picks the upstream for a request that already passed the host filter.
type Router struct {
	routes []Route
	mu     sync.RWMutex
}

// Route is a compiled config.Route.
type Route struct {
	Name     string
	Host     matchers.HostMatcher
	Path     matchers.PathPrefixMatcher
	Upstream string
	Proxy    string
}

// Match reports whether the route accepts the request.
func (rt *Route) Match(req *http.Request) bool {
	return rt.Host.Match(req) && rt.Path.Match(req)
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{}
}

// UpdateRoutes replaces the routing table. Order is preserved; the first
// matching route wins.
func (r *Router) UpdateRoutes(routes []config.Route) {
	compiled := make([]Route, 0, len(routes))
	for _, rc := range routes {
		compiled = append(compiled, buildRoute(rc))
	}

	r.mu.Lock()
	r.routes = compiled
	r.mu.Unlock()

	log.Info().Int("count", len(compiled)).Msg("routes updated")
}

func buildRoute(rc config.Route) Route {
	host := rc.Host
	if host == "" {
		host = "*"
	}
	return Route{
		Name:     rc.Name,
		Host:     matchers.Compile(host),
		Path:     matchers.PathPrefixMatcher{Prefix: rc.PathPrefix},
		Upstream: rc.Upstream,
		Proxy:    rc.Proxy,
	}
}

// Match finds the first matching route for the request
func (r *Router) Match(req *http.Request) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, route := range r.routes {
		if route.Match(req) {
			log.Ctx(req.Context()).Debug().
				Str("route", route.Name).
				Str("host", req.Host).
				Str("path", req.URL.Path).
				Msg("route matched")
			return route, true
		}
	}

	log.Ctx(req.Context()).Debug().
		Str("host", req.Host).
		Str("path", req.URL.Path).
		Msg("no route matched")

	return Route{}, false
}

// Routes returns a snapshot of the routing table.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]Route, len(r.routes))
	copy(routes, r.routes)
	return routes
}
