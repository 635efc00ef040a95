package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/repository/sqlstore"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.opts.Config.Database
			if cfg.Driver == "memory" {
				fmt.Fprintln(cmd.OutOrStdout(), "memory driver has no schema to migrate")
				return nil
			}

			db, err := sqlstore.NewDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlstore.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Driver)
			return nil
		},
	}
}
