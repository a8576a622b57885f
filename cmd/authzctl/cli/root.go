// Package cli implements authzctl, a headless client for the authorization console workflow.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odyssey-erp/odyssey-console/internal/auth"
	"github.com/odyssey-erp/odyssey-console/internal/platform/apiclient"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
	"github.com/odyssey-erp/odyssey-console/internal/roles"
	"github.com/odyssey-erp/odyssey-console/internal/users"
)

// Config is the connection setup shared by every command.
type Config struct {
	API        string        `mapstructure:"api" validate:"required,url"`
	Username   string        `mapstructure:"username" validate:"required"`
	Password   string        `mapstructure:"password" validate:"required"`
	TenantCode string        `mapstructure:"tenant-code" validate:"required"`
	Tenant     string        `mapstructure:"tenant" validate:"omitempty,uuid"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Verbose    bool          `mapstructure:"verbose"`
}

// NewRootCommand builds the authzctl command tree writing results to out and diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:           "authzctl",
		Short:         "Manage user permissions and roles from the command line",
		Long:          `authzctl signs in to the production backend as an operator and inspects or reconciles the permissions and roles of tenant users.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", configFile, err)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML file with connection settings")
	flags.String("api", "http://localhost:8080/api", "backend API base URL")
	flags.String("username", "", "operator username")
	flags.String("password", "", "operator password")
	flags.String("tenant-code", "", "tenant code used to sign in")
	flags.String("tenant", "", "tenant ID to scope calls to (defaults to the operator's tenant)")
	flags.Duration("timeout", 30*time.Second, "per-call timeout")
	flags.BoolP("verbose", "v", false, "log backend calls")
	_ = v.BindPFlags(flags)

	v.SetEnvPrefix("AUTHZCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api", "AUTHZCTL_API", "API_BASE_URL")

	root.AddCommand(
		newPermissionsCommand(v),
		newRolesCommand(v),
		newGrantsCommand(v),
		newApplyCommand(v),
	)
	return root
}

func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return Config{}, fmt.Errorf("invalid connection settings: %s", strings.Join(fields, ", "))
		}
		return Config{}, err
	}
	return cfg, nil
}

// session is a signed-in operator with the services the commands use.
type session struct {
	principal auth.Principal
	tenantID  uuid.UUID
	perms     *rbac.Service
	grants    *rbac.GrantService
	roles     *roles.Service
	users     *users.Service
}

func connect(cmd *cobra.Command, v *viper.Viper) (context.Context, *session, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.DiscardHandler)
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	base, err := apiclient.New(cfg.API,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	authService := auth.NewService(auth.NewAPIRepository(base), auth.NewMemoryStore(), logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	principal, err := authService.Login(ctx, auth.Credentials{
		Username:   cfg.Username,
		Password:   cfg.Password,
		TenantCode: cfg.TenantCode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sign in: %w", err)
	}

	tenant := cfg.Tenant
	if tenant == "" {
		tenant = principal.TenantID
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil {
		return nil, nil, fmt.Errorf("tenant %q is not a UUID", tenant)
	}
	ctx = apiclient.WithTenant(ctx, tenantID.String())

	client := base.Clone(apiclient.WithTokenSource(authService))
	return ctx, &session{
		principal: principal,
		tenantID:  tenantID,
		perms:     rbac.NewService(rbac.NewRepository(client), nil),
		grants:    rbac.NewGrantService(rbac.NewRepository(client)),
		roles:     roles.NewService(roles.NewRepository(client), nil),
		users:     users.NewService(users.NewRepository(client)),
	}, nil
}

func (s *session) engine() *reconcile.Engine {
	return reconcile.NewEngine(s.grants, s.users)
}
