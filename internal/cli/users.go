package cli

import (
	"github.com/spf13/cobra"

	userService "github.com/jwalitptl/clinic-api/internal/service/user"
)

func newUsersCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect user accounts",
	}

	var as string
	list := &cobra.Command{
		Use:   "list",
		Short: "Print active users and the role catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := e.store(ctx)
			if err != nil {
				return err
			}
			actor, err := e.actor(ctx, store, as)
			if err != nil {
				return err
			}

			svc := userService.NewService(store, e.opts.Hasher, e.opts.Config.Users.DefaultPassword, e.opts.Logger, nil)
			dir, err := svc.ListUsersFor(ctx, actor)
			if err != nil {
				return err
			}
			return e.printJSON(dir)
		},
	}
	list.Flags().StringVar(&as, "as", "", "user name to act as")

	cmd.AddCommand(list)
	return cmd
}
