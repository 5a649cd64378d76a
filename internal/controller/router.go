package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/metrics"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"go.uber.org/zap"
)

const (
	unmatchedRoute = "unmatched"
	otherMethod    = "OTHER"
)

// Router dispatches on exact path, then on method.
type Router struct {
	routes map[string]map[string]wire.HandlerFunc
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes: make(map[string]map[string]wire.HandlerFunc),
		logger: orNop(logger),
	}
}

func (r *Router) Handle(method, path string, h wire.HandlerFunc) {
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[string]wire.HandlerFunc)
		r.routes[path] = methods
	}
	methods[method] = h
}

func (r *Router) Get(path string, h wire.HandlerFunc) {
	r.Handle(http.MethodGet, path, h)
}

func (r *Router) Post(path string, h wire.HandlerFunc) {
	r.Handle(http.MethodPost, path, h)
}

// Group registers routes through r with mw applied to each handler.
func (r *Router) Group(mw func(wire.HandlerFunc) wire.HandlerFunc, fn func(g *Group)) {
	fn(&Group{router: r, mw: mw})
}

type Group struct {
	router *Router
	mw     func(wire.HandlerFunc) wire.HandlerFunc
}

func (g *Group) Get(path string, h wire.HandlerFunc) {
	g.router.Get(path, g.mw(h))
}

func (g *Group) Post(path string, h wire.HandlerFunc) {
	g.router.Post(path, g.mw(h))
}

func (r *Router) Serve(ctx context.Context, req *wire.Request) (resp *wire.Response) {
	start := time.Now()
	// Labels only take values from the route table.
	route, method := unmatchedRoute, otherMethod

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Handler panicked",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Error(fmt.Errorf("%v", rec)),
				zap.Stack("stack"))
			resp = wire.Message(http.StatusInternalServerError, "Internal server error")
		}
		if resp == nil {
			resp = wire.Message(http.StatusInternalServerError, "Internal server error")
		}
		metrics.ObserveRequest(method, route, resp.Status, time.Since(start))
	}()

	methods, ok := r.routes[req.Path]
	if !ok {
		return wire.Message(http.StatusNotFound, "URL not found")
	}
	route = req.Path

	h, ok := methods[req.Method]
	if !ok {
		return wire.Message(http.StatusMethodNotAllowed, "Method not allowed")
	}
	method = req.Method

	return h(ctx, req)
}
