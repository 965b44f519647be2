package httpproto

import "regexp"

// RouteHandler answers a parsed Request with a Response.
type RouteHandler func(Request) Response

type route struct {
	method  string
	pattern *regexp.Regexp
	handler RouteHandler
}

// Router dispatches requests to the first route whose method and compiled
// path pattern both match, falling back to a 404 response.
type Router struct {
	routes []route
}

// NewRouter returns a Router pre-populated with the gateway's built-in
// /health and /status routes.
func NewRouter() *Router {
	r := &Router{}
	r.AddRoute("GET", "^/health$", func(Request) Response {
		return Response{StatusCode: 200, Body: []byte(`{"status":"healthy","service":"shield"}`)}
	})
	r.AddRoute("GET", "^/status$", func(Request) Response {
		return Response{StatusCode: 200, Body: []byte(`{"status":"running","protocol":"http"}`)}
	})
	return r
}

// AddRoute registers a handler for method and a regular-expression path
// pattern. Routes are tried in registration order; the first match wins.
func (r *Router) AddRoute(method, pathPattern string, handler RouteHandler) {
	r.routes = append(r.routes, route{
		method:  method,
		pattern: regexp.MustCompile(pathPattern),
		handler: handler,
	})
}

// Route dispatches req to the first matching route, or NotFound(req.Path)
// if none match.
func (r *Router) Route(req Request) Response {
	for _, rt := range r.routes {
		if rt.method == req.Method && rt.pattern.MatchString(req.Path) {
			return rt.handler(req)
		}
	}
	return NotFound(req.Path)
}
