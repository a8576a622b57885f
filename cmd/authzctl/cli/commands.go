package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odyssey-erp/odyssey-console/internal/console"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
	"github.com/odyssey-erp/odyssey-console/internal/reconcile"
)

func newPermissionsCommand(v *viper.Viper) *cobra.Command {
	var module, query string
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "List the permission catalog",
		Long: `List definable permissions, optionally filtered by module and a case-insensitive
search over the permission key and description.

Examples:
  authzctl permissions
  authzctl permissions --module PRODUCTION --query approve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, sess, err := connect(cmd, v)
			if err != nil {
				return err
			}
			perms, err := sess.perms.ListPermissions(ctx)
			if err != nil {
				return err
			}
			perms = rbac.Filter(perms, query, module)
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tKEY\tMODULE\tDESCRIPTION")
			for _, p := range perms {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.PermissionKey, p.Module, p.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "only permissions of this module")
	cmd.Flags().StringVar(&query, "query", "", "search text")
	return cmd
}

func newRolesCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List assignable roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, sess, err := connect(cmd, v)
			if err != nil {
				return err
			}
			list, err := sess.roles.ListRoles(ctx)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tROLE\tDESCRIPTION")
			for _, r := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Name, r.Description)
			}
			return tw.Flush()
		},
	}
}

func newGrantsCommand(v *viper.Viper) *cobra.Command {
	var userFlag string
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Show the permissions and roles a user holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			ctx, sess, err := connect(cmd, v)
			if err != nil {
				return err
			}
			catalogs, err := console.LoadCatalogs(ctx, sess.perms, sess.roles)
			if err != nil {
				return err
			}
			ctrl := console.NewController(catalogs, sess.users, sess.grants, sess.engine(), console.WithTenant(sess.tenantID))
			if err := ctrl.SelectUser(ctx, userID); err != nil {
				return err
			}
			snap := ctrl.Snapshot("", "")
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "User: %s (%s)\n", snap.User.DisplayName(), snap.User.Username)
			tw := newTable(w)
			fmt.Fprintln(tw, "ID\tKEY\tMODULE")
			for _, row := range snap.Permissions {
				if row.Granted {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", row.ID, row.PermissionKey, row.Module)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			var held []string
			for _, row := range snap.Roles {
				if row.Checked {
					held = append(held, row.Name)
				}
			}
			fmt.Fprintf(w, "Roles: %s\n", strings.Join(held, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ErrApplyFailed reports a save where some backend calls failed.
var ErrApplyFailed = errors.New("apply finished with failures")

func newApplyCommand(v *viper.Viper) *cobra.Command {
	var (
		userFlag  string
		permsFlag string
		rolesFlag string
		notes     string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Make a user's permissions and roles exactly the given sets",
		Long: `Grant and revoke permissions so the user holds exactly --permissions, and replace
the user's roles with --roles. Each permission change is a separate backend call;
failures do not stop the remaining calls. The final state is reloaded and printed.

Examples:
  authzctl apply --user 8d1f4a52-5f7c-4b53-a9a5-1f3b0a0e6c11 --permissions 2,3 --roles 2
  authzctl apply --user 8d1f4a52-5f7c-4b53-a9a5-1f3b0a0e6c11 --permissions "" --roles 1 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("--user must be a UUID: %w", err)
			}
			desired, err := parseIDs(permsFlag)
			if err != nil {
				return fmt.Errorf("--permissions: %w", err)
			}
			desiredRoles, err := parseIDs(rolesFlag)
			if err != nil {
				return fmt.Errorf("--roles: %w", err)
			}
			if len(notes) > 500 {
				return errors.New("--notes must be at most 500 characters")
			}

			ctx, sess, err := connect(cmd, v)
			if err != nil {
				return err
			}
			catalogs, err := console.LoadCatalogs(ctx, sess.perms, sess.roles)
			if err != nil {
				return err
			}
			ctrl := console.NewController(catalogs, sess.users, sess.grants, sess.engine(),
				console.WithTenant(sess.tenantID),
				console.WithActor(sess.principal.Username),
			)
			if err := ctrl.SelectUser(ctx, userID); err != nil {
				return err
			}
			if err := ctrl.SetDesired(desired, desiredRoles); err != nil {
				return err
			}
			if err := ctrl.SetNotes(notes); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			plan, err := ctrl.Plan()
			if err != nil {
				return err
			}
			printPlan(w, plan)
			if dryRun {
				return nil
			}

			res, err := ctrl.Save(ctx)
			if errors.Is(err, console.ErrNoChanges) {
				fmt.Fprintln(w, "Nothing to change.")
				return nil
			}
			printOutcomes(w, res)
			if err != nil {
				if errors.Is(err, reconcile.ErrPartialFailure) {
					return fmt.Errorf("%w: %d of %d calls failed", ErrApplyFailed, len(res.Failed()), len(res.Outcomes))
				}
				return err
			}
			fmt.Fprintln(w, "Saved.")
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "user ID")
	cmd.Flags().StringVar(&permsFlag, "permissions", "", "comma-separated permission IDs the user must hold")
	cmd.Flags().StringVar(&rolesFlag, "roles", "", "comma-separated role IDs the user must hold")
	cmd.Flags().StringVar(&notes, "notes", "", "note attached to new grants")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without saving")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("permissions")
	_ = cmd.MarkFlagRequired("roles")
	return cmd
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func printPlan(w io.Writer, plan reconcile.Plan) {
	fmt.Fprintf(w, "Grant:  %s\n", joinIDs(plan.Grant))
	fmt.Fprintf(w, "Revoke: %s\n", joinIDs(plan.Revoke))
	fmt.Fprintf(w, "Roles:  %s\n", joinIDs(plan.RoleIDs))
}

func printOutcomes(w io.Writer, res reconcile.Result) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ACTION\tPERMISSION\tSTATUS\tERROR")
	for _, o := range res.Outcomes {
		id := "-"
		if o.PermissionID != 0 {
			id = strconv.FormatInt(o.PermissionID, 10)
		}
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Action, id, o.Status(), msg)
	}
	_ = tw.Flush()
	if res.ReloadErr != nil {
		fmt.Fprintf(w, "Could not reload the current state: %v\n", res.ReloadErr)
	}
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
