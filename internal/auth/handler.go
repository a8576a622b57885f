package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// Handler wires HTTP endpoints for operator sign-in.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(RequireOperator(h.service))
		r.Get("/me", h.handleMe)
		r.Post("/company", h.handleCompany)
	})
}

type sessionResponse struct {
	Principal Principal `json:"principal"`
	CompanyID string    `json:"companyId,omitempty"`
	CSRFToken string    `json:"csrfToken,omitempty"`
}

type companyRequest struct {
	CompanyID string `json:"companyId" validate:"required,max=64,alphanumunicode"`
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.ErrNoSession)
		return
	}

	var creds Credentials
	if err := httpx.DecodeJSON(r, &creds); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if fields := validationErrors(h.validator.Struct(creds)); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}

	h.sessionManager.Renew(sess)
	principal, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.respondLoginError(w, err)
		return
	}
	token, err := h.csrfManager.Rotate(sess)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{Principal: principal, CSRFToken: token})
}

func (h *Handler) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, ErrAccountLocked):
		httpx.Problem(w, http.StatusLocked, "Locked", "account locked, try again later")
	case errors.Is(err, ErrTenantNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "tenant not found")
	default:
		h.logger.Warn("operator login failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Backend Unavailable", "server error, try again")
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	resp := sessionResponse{Principal: principal}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		resp.CompanyID = sess.Get(shared.SessionKeyCompanyID)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if fields := validationErrors(h.validator.Struct(req)); len(fields) > 0 {
		httpx.ValidationProblem(w, fields)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, ErrSessionExpired)
		return
	}
	sess.Set(shared.SessionKeyCompanyID, req.CompanyID)
	principal, _ := PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, sessionResponse{Principal: principal, CompanyID: req.CompanyID})
}

type principalKey struct{}

// ContextWithPrincipal stores the signed-in operator in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the operator stored by RequireOperator.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequireOperator rejects requests without a signed-in operator and scopes backend calls made
// while serving the request to the operator's tenant and selected company.
func RequireOperator(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := service.Current(r.Context())
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = apiclient.WithTenant(ctx, principal.TenantID)
			if sess := shared.SessionFromContext(ctx); sess != nil {
				ctx = apiclient.WithCompany(ctx, sess.Get(shared.SessionKeyCompanyID))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"general": err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
