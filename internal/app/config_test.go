package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CSRF_SECRET", "s3cret")
	t.Setenv("CONSOLE_ADMIN_ROLES", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, CatalogCacheRedis, cfg.CatalogCache)
	require.Equal(t, shared.ConsoleAdminRoles(), cfg.ConsoleAdminRoles)
	require.Equal(t, 10, cfg.SaveRateLimit)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CSRF_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("CATALOG_CACHE", "memory")
	t.Setenv("CONSOLE_ADMIN_ROLES", "SUPERVISOR, ADMIN")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, CatalogCacheMemory, cfg.CatalogCache)
	require.Equal(t, []string{"SUPERVISOR", "ADMIN"}, cfg.ConsoleAdminRoles)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{CSRFSecret: "x", APIBaseURL: "http://backend:8080/api", CatalogCache: CatalogCacheRedis, SaveRateLimit: 5}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.CSRFSecret = ""
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.APIBaseURL = "/api"
	require.Error(t, cfg.Validate())

	cfg = valid()
	cfg.CatalogCache = "disk"
	require.ErrorContains(t, cfg.Validate(), "CATALOG_CACHE")

	cfg = valid()
	cfg.SaveRateLimit = 0
	require.Error(t, cfg.Validate())
}
