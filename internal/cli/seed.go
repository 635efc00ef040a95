package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/app"
)

func newSeedCmd(e *env) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the role catalog and the first administrator",
		Long: `Seed installs the permission and role catalog and creates the administrator
from seed.admin_user_name and CLINIC_ADMIN_PASSWORD when no users exist yet.
With --dev it also adds demo doctors, patients and a receptionist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Seed(cmd.Context(), store, e.opts.Hasher, e.opts.Config.Seed, dev, e.opts.Logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "also create demo accounts")
	return cmd
}
