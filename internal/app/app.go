package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/moneytransfer/internal/repository"
	"github.com/Evgen-Mutagen/moneytransfer/internal/server"
	"github.com/Evgen-Mutagen/moneytransfer/internal/service"
	"github.com/Evgen-Mutagen/moneytransfer/internal/token"
	"github.com/Evgen-Mutagen/moneytransfer/internal/util/logger"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg     *Config
	db      *repository.Database
	Logger  *zap.Logger
	actions *zap.Logger
	limiter *middlewareinternal.RateLimiter
	Handler wire.Handler
	Server  *server.Server
	Admin   *http.Server
}

func New(cfg *Config) (*App, error) {
	app := &App{
		cfg:    cfg,
		Logger: zap.L(),
	}

	if err := app.initDB(); err != nil {
		return nil, err
	}

	actions, err := logger.NewActions(cfg.ActionsLog)
	if err != nil {
		app.db.Close()
		return nil, fmt.Errorf("actions logger initialization failed: %w", err)
	}
	app.actions = actions

	if err := app.initHandler(); err != nil {
		app.Close()
		return nil, err
	}

	app.Server = server.New(app.Handler, server.Options{
		Addr:         cfg.RunAddress,
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, app.Logger)

	if cfg.AdminAddress != "" {
		app.Admin = &http.Server{
			Addr:              cfg.AdminAddress,
			Handler:           NewAdminRouter(app.db, app.Logger),
			ReadHeaderTimeout: cfg.ReadTimeout,
		}
	}

	return app, nil
}

func (a *App) initDB() error {
	dbConfig := repository.DatabaseConfig{
		DSN:            a.cfg.DatabaseURI,
		MigrationsPath: a.cfg.MigrationsPath,
		MaxOpenConns:   a.cfg.Workers,
	}

	db, err := repository.NewDatabase(dbConfig)
	if err != nil {
		a.Logger.Error("Database initialization failed",
			zap.String("dsn", a.cfg.MaskDBPassword()),
			zap.Error(err))
		return fmt.Errorf("database initialization failed: %w", err)
	}

	a.db = db
	a.Logger.Info("Database initialized successfully",
		zap.String("migrations_path", a.cfg.MigrationsPath))

	return nil
}

func (a *App) initHandler() error {
	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:    a.cfg.AccessSecret,
		RefreshSecret:   a.cfg.RefreshSecret,
		AccessLifetime:  a.cfg.AccessLifetime,
		RefreshLifetime: a.cfg.RefreshLifetime,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("token issuer initialization failed: %w", err)
	}

	// Services
	userRepo := repository.NewUserRepository(a.db)
	accountRepo := repository.NewAccountRepository(a.db)

	authService := service.NewAuthService(userRepo, issuer, a.Logger)
	ledgerService := service.NewLedgerService(accountRepo, a.Logger)

	router := NewRouter(authService, ledgerService, issuer, a.Logger, a.actions)
	a.Handler = router

	if a.cfg.RateLimit > 0 {
		a.limiter = middlewareinternal.NewRateLimiter(a.cfg.RateLimit, a.cfg.RateBurst, a.Logger)
		a.Handler = a.limiter.Handler(router)
	}
	return nil
}

// Run serves until ctx is done, then drains in-flight connections. The admin
// listener is bound before serving starts; if it later fails, Run stops too.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.limiter != nil {
		a.limiter.StartCleanup(ctx, time.Minute)
	}

	adminErr := make(chan error, 1)
	if a.Admin != nil {
		ln, err := net.Listen("tcp", a.Admin.Addr)
		if err != nil {
			return fmt.Errorf("admin listener: %w", err)
		}
		a.Logger.Info("Starting admin HTTP server",
			zap.String("address", ln.Addr().String()))

		go func() {
			if err := a.Admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("Admin server failed", zap.Error(err))
				adminErr <- err
				cancel()
			}
		}()
	}

	err := a.Server.ListenAndServe(ctx)

	if a.Admin != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		err = multierr.Append(err, a.Admin.Shutdown(shutdownCtx))
	}

	select {
	case e := <-adminErr:
		err = multierr.Append(err, e)
	default:
	}
	return err
}

// Close releases the database pool and flushes the actions log.
func (a *App) Close() error {
	var err error
	// Sync on stdout returns EINVAL on Linux.
	if a.actions != nil && a.cfg.ActionsLog != "" {
		err = multierr.Append(err, a.actions.Sync())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return err
}
