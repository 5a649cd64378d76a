package app

import (
	"context"
	"net/http"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/controller"
	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/metrics"
	"github.com/Evgen-Mutagen/moneytransfer/internal/middlewareinternal"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// NewRouter builds the route table served on the raw TCP listener.
func NewRouter(
	authService core.AuthService,
	ledgerService core.LedgerService,
	validator middlewareinternal.AccessValidator,
	logger, actions *zap.Logger,
) *controller.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	authController := controller.NewAuthController(authService, logger, actions)
	accountController := controller.NewAccountController(ledgerService, logger, actions)

	r := controller.NewRouter(logger)

	// Public routes
	r.Post("/signup", authController.SignUp)
	r.Post("/signin", authController.SignIn)
	r.Post("/token", authController.Token)
	r.Post("/refresh", authController.Refresh)

	// Protected routes
	r.Group(middlewareinternal.BearerAuth(validator, logger), func(g *controller.Group) {
		g.Get("/money", accountController.GetMoney)
		g.Post("/money", accountController.SendMoney)
	})

	return r
}

type pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewAdminRouter serves /healthz and /metrics over plain HTTP.
func NewAdminRouter(db pinger, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Warn("Health check failed",
				zap.String("request_id", middleware.GetReqID(req.Context())),
				zap.Error(err))
			render.Status(req, http.StatusServiceUnavailable)
			render.JSON(w, req, healthResponse{Status: "unavailable", Error: "database unreachable"})
			return
		}
		render.JSON(w, req, healthResponse{Status: "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
