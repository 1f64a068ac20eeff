package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"workwise-service/internal/db"
	"workwise-service/internal/domain/auth"
	"workwise-service/internal/pkg/session"
	"workwise-service/internal/repository/postgres"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	databaseURL string
	table       string
	apply       bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "roletool",
		Short: "Inspect and repair profile roles",
		Long: `roletool manages the free-text role column of the profiles table.

Without --apply the write commands only print the SQL they would run, so an
operator can review it or apply it by hand.

Examples:
  # Show how stored values resolve
  roletool check "Admin " admin user ""

  # Print the normalization script
  roletool normalize

  # Normalize in place
  roletool normalize --apply`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	root.PersistentFlags().StringVar(&opts.table, "table", "profiles", "profiles table name")
	root.PersistentFlags().BoolVar(&opts.apply, "apply", false, "execute against the database instead of printing SQL")

	root.AddCommand(newCheckCmd(), newNormalizeCmd(opts), newSetRoleCmd(opts))
	return root
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <stored-role>...",
		Short: "Show the role each stored value resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writeResolved(cmd.OutOrStdout(), args)
			return nil
		},
	}
}

func writeResolved(w io.Writer, raws []string) {
	for _, raw := range raws {
		resolved := auth.RoleUser
		if strings.TrimSpace(raw) != "" {
			resolved = session.NormalizeRole(raw)
		}
		fmt.Fprintf(w, "%q\t-> %s\n", raw, resolved)
	}
}

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Rewrite stored roles to their trimmed lower-case form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !opts.apply {
				fmt.Fprint(out, postgres.NormalizeRolesSQL(opts.table))
				return nil
			}

			repo, closeFn, err := opts.profileRepo(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			changed, err := repo.NormalizeRoles(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range changed {
				fmt.Fprintf(out, "%s\t%q -> %q\n", n.ProfileID, n.From, n.To)
			}
			fmt.Fprintf(out, "%d profile(s) normalized\n", len(changed))
			return nil
		},
	}
}

func newSetRoleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <user-id> <user|admin>",
		Short: "Assign a role to a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			role := strings.ToLower(strings.TrimSpace(args[1]))
			if role != string(auth.RoleUser) && role != string(auth.RoleAdmin) {
				return fmt.Errorf("role must be %q or %q", auth.RoleUser, auth.RoleAdmin)
			}

			out := cmd.OutOrStdout()
			if !opts.apply {
				fmt.Fprint(out, postgres.SetRoleSQL(opts.table, userID, role))
				return nil
			}

			repo, closeFn, err := opts.profileRepo(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := repo.UpdateRole(cmd.Context(), userID, role); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s is now %s\n", userID, role)
			return nil
		},
	}
}

func (o *rootOptions) profileRepo(cmd *cobra.Command) (*postgres.ProfileRepository, func(), error) {
	if o.table != "profiles" {
		return nil, nil, fmt.Errorf("--apply only supports the profiles table")
	}
	pool, err := db.ConnectDB(cmd.Context(), db.PostgresConfig{URL: o.databaseURL, MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewProfileRepository(pool), pool.Close, nil
}
