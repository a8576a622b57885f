package console

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// Services are the backend clients a session controller is built from.
type Services struct {
	Permissions PermissionCatalog
	Roles       RoleCatalog
	Users       UserReader
	Grants      GrantReader
	Engine      Reconciler
	// Caches are dropped before a catalog refresh so it reaches the backend.
	Caches []CatalogInvalidator
}

// CatalogInvalidator drops a cached catalog.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SessionEnder signs the operator out.
type SessionEnder interface {
	Logout(ctx context.Context) error
}

// Handler exposes the editor actions of the session's controller as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	services  Services
	sessions  SessionEnder
	saveLimit int
	validator *validator.Validate
}

// NewHandler builds Handler instance. saveLimit caps saves per client IP per minute.
func NewHandler(logger *slog.Logger, registry *Registry, services Services, sessions SessionEnder, saveLimit int) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if saveLimit <= 0 {
		saveLimit = 10
	}
	return &Handler{
		logger:    logger,
		registry:  registry,
		services:  services,
		sessions:  sessions,
		saveLimit: saveLimit,
		validator: validator.New(),
	}
}

// MountRoutes registers console routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.snapshot)
	r.Get("/plan", h.plan)
	r.Post("/catalogs/refresh", h.refreshCatalogs)
	r.Post("/users/{userID}", h.selectUser)
	r.Post("/permissions/{id}/toggle", h.togglePermission)
	r.Post("/roles/{id}/toggle", h.toggleRole)
	r.Post("/reset", h.reset)
	r.Delete("/banner", h.dismissBanner)
	r.With(httprate.Limit(h.saveLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).Post("/save", h.save)
}

type saveRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*Controller, bool) {
	sess := shared.SessionFromContext(r.Context())
	principal, ok := auth.PrincipalFromContext(r.Context())
	if sess == nil || !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, false
	}
	ctrl, err := h.registry.Get(r.Context(), sess.ID, func(ctx context.Context) (*Controller, error) {
		catalogs, err := LoadCatalogs(ctx, h.services.Permissions, h.services.Roles)
		if err != nil {
			return nil, err
		}
		tenant, _ := principal.TenantUUID()
		return NewController(catalogs, h.services.Users, h.services.Grants, h.services.Engine,
			WithTenant(tenant),
			WithActor(principal.Username),
			WithLogger(h.logger),
		), nil
	})
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	httpx.JSON(w, http.StatusOK, ctrl.Snapshot(q.Get("q"), q.Get("module")))
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	plan, err := ctrl.Plan()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) refreshCatalogs(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	for _, c := range h.services.Caches {
		if err := c.Invalidate(r.Context()); err != nil {
			h.logger.Warn("catalog cache invalidate", slog.Any("error", err))
		}
	}
	catalogs, err := LoadCatalogs(r.Context(), h.services.Permissions, h.services.Roles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctrl.SetCatalogs(catalogs)
	h.respond(w, r, ctrl)
}

func (h *Handler) selectUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.SelectUser(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, ctrl)
}

func (h *Handler) togglePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if _, err := ctrl.TogglePermission(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, ctrl)
}

func (h *Handler) toggleRole(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if _, err := ctrl.ToggleRole(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, ctrl)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.Reset(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, ctrl)
}

func (h *Handler) dismissBanner(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.DismissBanner()
	h.respond(w, r, ctrl)
}

// save answers 200 with the snapshot even when some calls failed; the banner and lastSave carry
// the failures.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := h.validator.Struct(req); err != nil {
			httpx.ValidationProblem(w, map[string]string{"notes": "max"})
			return
		}
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if req.Notes != "" {
		if err := ctrl.SetNotes(req.Notes); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if _, err := ctrl.Save(r.Context()); err != nil {
		if errors.Is(err, apiclient.ErrAuth) || errors.Is(err, ErrNoUserSelected) ||
			errors.Is(err, ErrSaveInProgress) || errors.Is(err, ErrNoChanges) {
			h.fail(w, r, err)
			return
		}
		h.logger.Warn("save finished with failures", slog.Any("error", err))
	}
	h.respond(w, r, ctrl)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, ctrl *Controller) {
	q := r.URL.Query()
	httpx.JSON(w, http.StatusOK, ctrl.Snapshot(q.Get("q"), q.Get("module")))
}

// fail answers err. An expired backend session ends the console session too.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apiclient.ErrAuth):
		if sess := shared.SessionFromContext(r.Context()); sess != nil {
			h.registry.Drop(sess.ID)
		}
		if h.sessions != nil {
			if lerr := h.sessions.Logout(r.Context()); lerr != nil {
				h.logger.Warn("logout after auth failure", slog.Any("error", lerr))
			}
		}
		httpx.RespondError(w, err)
	case errors.Is(err, ErrNoUserSelected), errors.Is(err, ErrSaveInProgress), errors.Is(err, ErrNoChanges):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnknownPermission), errors.Is(err, ErrUnknownRole):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Warn("console action failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}
