package routerhelper

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// RouteGroup registers httprouter handles below a common path prefix.
type RouteGroup struct {
	router *httprouter.Router
	prefix string
}

func NewRouteGroup(router *httprouter.Router, prefix string) *RouteGroup {
	return &RouteGroup{router: router, prefix: strings.TrimSuffix(prefix, "/")}
}

func (g *RouteGroup) Group(path string) *RouteGroup {
	return NewRouteGroup(g.router, g.path(path))
}

func (g *RouteGroup) path(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return g.prefix + p
}

func (g *RouteGroup) Handle(method, path string, handle httprouter.Handle) {
	g.router.Handle(method, g.path(path), handle)
}

func (g *RouteGroup) Handler(method, path string, handler http.Handler) {
	g.router.Handler(method, g.path(path), handler)
}

func (g *RouteGroup) GET(path string, handle httprouter.Handle) {
	g.Handle(http.MethodGet, path, handle)
}

func (g *RouteGroup) POST(path string, handle httprouter.Handle) {
	g.Handle(http.MethodPost, path, handle)
}

func (g *RouteGroup) DELETE(path string, handle httprouter.Handle) {
	g.Handle(http.MethodDelete, path, handle)
}
