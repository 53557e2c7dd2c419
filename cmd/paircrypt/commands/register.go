package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your pre-key bundle to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDevice(); err != nil {
				return err
			}
			return unlocked(func(w *app.Wire) error {
				m, err := w.RequireMessages()
				if err != nil {
					return err
				}
				if _, err := appCtx.PreKeys.ReplenishOneTimePreKeys(appCtx.Config.Session.OneTimePreKeys); err != nil {
					return err
				}
				b, err := m.Register(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s with %d one-time pre-keys\n", b.DeviceID, len(b.OneTimePreKeys))
				return nil
			})
		},
	}
}
