package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/model"
	rbacService "github.com/jwalitptl/clinic-api/internal/service/rbac"
)

type roleFlags struct {
	as   string
	user string
	role string
}

func newRolesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Assign or remove user roles",
	}
	cmd.AddCommand(
		newRoleChangeCmd(e, "assign", "Give a user a role", func(ctx context.Context, svc *rbacService.Service, actor *model.Actor, req *model.RoleChangeRequest) error {
			_, err := svc.AssignRoleTo(ctx, actor, req)
			return err
		}),
		newRoleChangeCmd(e, "remove", "Take a role away from a user", func(ctx context.Context, svc *rbacService.Service, actor *model.Actor, req *model.RoleChangeRequest) error {
			_, err := svc.RemoveRoleOf(ctx, actor, req)
			return err
		}),
	)
	return cmd
}

type roleChangeFunc func(context.Context, *rbacService.Service, *model.Actor, *model.RoleChangeRequest) error

func newRoleChangeCmd(e *env, use, short string, change roleChangeFunc) *cobra.Command {
	var f roleFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := e.store(ctx)
			if err != nil {
				return err
			}
			actor, err := e.actor(ctx, store, f.as)
			if err != nil {
				return err
			}

			svc := rbacService.NewService(store, e.opts.Logger, nil)
			if err := change(ctx, svc, actor, &model.RoleChangeRequest{UserID: f.user, Role: f.role}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: user %s role %s\n", use, f.user, f.role)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.as, "as", "", "user name to act as")
	cmd.Flags().StringVar(&f.user, "user", "", "target user id")
	cmd.Flags().StringVar(&f.role, "role", "", "role name")
	return cmd
}
