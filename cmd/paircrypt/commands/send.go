package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
	"paircrypt/internal/domain"
)

// sendCmd encrypts and sends a message to a peer with an existing session.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDevice(); err != nil {
				return err
			}
			return unlocked(func(w *app.Wire) error {
				m, err := w.RequireMessages()
				if err != nil {
					return err
				}
				if err := m.SendMessage(cmd.Context(), domain.DeviceID(args[0]), []byte(args[1])); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sent")
				return nil
			})
		},
	}
}
