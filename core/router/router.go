// Package router matches requests against method+pattern routes, runs the
// middleware chain around the matched handler, and serves static files
// (with byte ranges and an LRU content cache) for paths under the
// configured static prefix.
//
// All registration (Use, Handle, SetStaticDir) happens before the server
// starts; the router is read-only at request time and therefore unlocked.
package router

import (
	"github.com/rs/zerolog"

	"github.com/searchktools/swerve/core/cache"
	"github.com/searchktools/swerve/core/http"
)

// PathParams maps path-variable names to their decoded values.
type PathParams map[string]string

// Handler is the terminal route callback.
type Handler func(req *http.Request, params PathParams, jsonBody any) *http.Response

// Next resumes the middleware chain.
type Next func() *http.Response

// Middleware wraps the chain below it; it must call next exactly once or
// short-circuit with its own response.
type Middleware func(req *http.Request, jsonBody any, next Next) *http.Response

type route struct {
	pattern *compiledPattern
	handler Handler
}

// Router is the routing engine. Construct with New, register, then hand it
// to the server.
type Router struct {
	log         zerolog.Logger
	middlewares []Middleware
	routes      map[http.Method][]*route

	staticRoot   string // canonical; empty disables static serving
	staticPrefix string // always '/'-terminated

	fileCache       *cache.FileCache
	streamThreshold int64
}

// New creates a router. fileCache may be nil to disable content caching.
func New(fileCache *cache.FileCache, streamThreshold int64, log zerolog.Logger) *Router {
	if streamThreshold <= 0 {
		streamThreshold = 1024 * 1024
	}
	return &Router{
		log:             log,
		routes:          make(map[http.Method][]*route),
		fileCache:       fileCache,
		streamThreshold: streamThreshold,
	}
}

// Use appends a middleware. The first registered middleware is the
// outermost wrapper at request time.
func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

// Handle registers a handler for method and a path template like
// "/user/:id". Routes are matched in registration order.
func (r *Router) Handle(method http.Method, pattern string, h Handler) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	r.routes[method] = append(r.routes[method], &route{pattern: cp, handler: h})
	r.log.Debug().Str("method", method.String()).Str("pattern", pattern).Msg("route registered")
	return nil
}

// Route dispatches one request and always produces a response.
func (r *Router) Route(req *http.Request, jsonBody any) *http.Response {
	matched, params := r.matchRoute(req)

	handler := func() *http.Response {
		if matched != nil {
			return matched.handler(req, params, jsonBody)
		}
		if resp, handled := r.serveStatic(req); handled {
			return resp
		}
		if len(r.routes[req.Method]) == 0 {
			return r.errorResponse(req, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return r.errorResponse(req, http.StatusNotFound, "Page not found")
	}

	// Compose in reverse registration order so the first-registered
	// middleware ends up outermost.
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		mw := r.middlewares[i]
		next := handler
		handler = func() *http.Response {
			return mw(req, jsonBody, next)
		}
	}

	return handler()
}

// matchRoute scans the method's routes in registration order; the first
// full match wins.
func (r *Router) matchRoute(req *http.Request) (*route, PathParams) {
	for _, rt := range r.routes[req.Method] {
		if values, ok := rt.pattern.match(req.Path); ok {
			params := make(PathParams, len(values))
			for i, name := range rt.pattern.paramNames {
				params[name] = values[i]
			}
			return rt, params
		}
	}
	return nil, nil
}
