package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/console"
	"github.com/odyssey-erp/odyssey-console/internal/observability"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

// Deps are the external resources the console runs on.
type Deps struct {
	Redis *redis.Client
	// Recorder journals reconciliation runs; nil disables the journal.
	Recorder   reconcile.Recorder
	Metrics    *observability.Metrics
	HTTPClient *http.Client
}

// Server is the wired console.
type Server struct {
	Handler  http.Handler
	Auth     *auth.Service
	Registry *console.Registry
}

// NewServer wires the backend clients, services and HTTP handlers.
func NewServer(cfg *Config, logger *slog.Logger, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if deps.Redis == nil {
		return nil, errors.New("app: redis client required for sessions")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.APITimeout}
	}

	base, err := apiclient.New(cfg.APIBaseURL, apiclient.WithHTTPClient(httpClient), apiclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(auth.NewAPIRepository(base), auth.SessionStore{}, logger)
	client := base.Clone(
		apiclient.WithTokenSource(authService),
		apiclient.WithUnauthorizedHandler(func(ctx context.Context) {
			if err := authService.Logout(ctx); err != nil {
				logger.Warn("logout after backend rejection", slog.Any("error", err))
			}
		}),
	)

	var store cache.Store
	if cfg.CatalogCache == CatalogCacheRedis {
		store = cache.NewRedisStore(deps.Redis)
	} else {
		store = cache.NewMemoryStore(cfg.CatalogCacheTTL)
	}
	catalogCache := cache.NewCatalog(store, cfg.CatalogCacheTTL, logger)

	permissionService := rbac.NewService(rbac.NewRepository(client), catalogCache)
	grantService := rbac.NewGrantService(rbac.NewRepository(client))
	roleService := roles.NewService(roles.NewRepository(client), catalogCache)
	userService := users.NewService(users.NewRepository(client))

	engineOpts := []reconcile.Option{reconcile.WithLogger(logger)}
	if deps.Metrics != nil {
		engineOpts = append(engineOpts, reconcile.WithObserver(deps.Metrics))
	}
	if deps.Recorder != nil {
		engineOpts = append(engineOpts, reconcile.WithRecorder(deps.Recorder))
	}
	engine := reconcile.NewEngine(grantService, userService, engineOpts...)

	sessionManager := shared.NewSessionManager(deps.Redis, cfg.SessionCookieName, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	registry := console.NewRegistry(cfg.SessionTTL)

	consoleHandler := console.NewHandler(logger, registry, console.Services{
		Permissions: permissionService,
		Roles:       roleService,
		Users:       userService,
		Grants:      grantService,
		Engine:      engine,
		Caches:      []console.CatalogInvalidator{permissionService, roleService},
	}, authService, cfg.SaveRateLimit)

	router := NewRouter(RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthService:        authService,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, permissionService),
		RolesHandler:       roles.NewHandler(logger, roleService),
		UsersHandler:       users.NewHandler(logger, userService),
		ConsoleHandler:     consoleHandler,
		RBACMiddleware:     rbac.Middleware{Logger: logger},
		Metrics:            deps.Metrics,
	})

	return &Server{Handler: router, Auth: authService, Registry: registry}, nil
}
