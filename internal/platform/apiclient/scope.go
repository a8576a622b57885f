package apiclient

import (
	"context"
	"net/http"
)

// Scope headers understood by company-scoped backend endpoints.
const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderCompanyID = "X-Company-ID"
)

type tenantKey struct{}

type companyKey struct{}

// WithTenant scopes calls made with ctx to a tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// WithCompany scopes calls made with ctx to a company.
func WithCompany(ctx context.Context, companyID string) context.Context {
	if companyID == "" {
		return ctx
	}
	return context.WithValue(ctx, companyKey{}, companyID)
}

// TenantFromContext returns the tenant scope, if any.
func TenantFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tenantKey{}).(string)
	return v
}

// CompanyFromContext returns the company scope, if any.
func CompanyFromContext(ctx context.Context) string {
	v, _ := ctx.Value(companyKey{}).(string)
	return v
}

func applyScope(ctx context.Context, h http.Header) {
	if tenant := TenantFromContext(ctx); tenant != "" {
		h.Set(HeaderTenantID, tenant)
	}
	if company := CompanyFromContext(ctx); company != "" {
		h.Set(HeaderCompanyID, company)
	}
}
