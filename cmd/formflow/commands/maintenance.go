package commands

import (
	"fmt"

	handler "formflow-backend/api"
	"formflow-backend/pkg/access"

	"github.com/spf13/cobra"
)

// NewReconcileCommand rebuilds workspace access lists from the workspaces' sharing lists
func NewReconcileCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Args:  cobra.NoArgs,
		Short: "Rebuild users' workspace access from workspace sharing lists",
		Long: `Rebuild each user's workspace access list from the sharing lists of the workspaces.
Use --user to repair a single account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			engine := access.NewEngine(rt.db, rt.log)
			if userID != "" {
				user, changed, err := engine.ReconcileUserAccess(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s: %d shared workspaces (changed: %t)\n",
					user.ID, len(user.WorkspaceAccess), changed)
				return nil
			}

			changed, err := engine.ReconcileAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled users, %d updated\n", changed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "reconcile only this user id")
	return cmd
}

// NewSweepInvitesCommand deletes expired invites once
func NewSweepInvitesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-invites",
		Args:  cobra.NoArgs,
		Short: "Delete expired workspace invites",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := handler.NewLedger(rt.cfg, rt.db, rt.log).SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired invites\n", n)
			return nil
		},
	}
}
