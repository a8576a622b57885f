package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

// Catalog cache backends.
const (
	CatalogCacheRedis  = "redis"
	CatalogCacheMemory = "memory"
)

// Config holds runtime configuration for the console.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"45s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://localhost:8080/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"30s"`

	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionCookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"console_session"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	CatalogCache    string        `envconfig:"CATALOG_CACHE" default:"redis"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`

	// PGDSN enables the reconciliation journal when set.
	PGDSN string `envconfig:"PG_DSN"`

	ConsoleAdminRoles []string `envconfig:"CONSOLE_ADMIN_ROLES"`
	SaveRateLimit     int      `envconfig:"SAVE_RATE_LIMIT" default:"10"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot and fills derived defaults.
func (c *Config) Validate() error {
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q must be an absolute URL", c.APIBaseURL)
	}
	switch c.CatalogCache {
	case CatalogCacheRedis, CatalogCacheMemory:
	default:
		return fmt.Errorf("CATALOG_CACHE must be %q or %q, got %q", CatalogCacheRedis, CatalogCacheMemory, c.CatalogCache)
	}
	if c.SaveRateLimit <= 0 {
		return errors.New("SAVE_RATE_LIMIT must be positive")
	}
	roles := make([]string, 0, len(c.ConsoleAdminRoles))
	for _, role := range c.ConsoleAdminRoles {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = shared.ConsoleAdminRoles()
	}
	c.ConsoleAdminRoles = roles
	return nil
}

// IsProduction returns true when the console runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
