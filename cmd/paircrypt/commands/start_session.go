package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
	"paircrypt/internal/domain"
)

// startSessionCmd runs X3DH against a peer's bundle and stores the session.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDevice(); err != nil {
				return err
			}
			peer := domain.DeviceID(args[0])
			return unlocked(func(w *app.Wire) error {
				m, err := w.RequireMessages()
				if err != nil {
					return err
				}
				fp, err := m.StartSession(cmd.Context(), peer)
				if err != nil {
					return fmt.Errorf("starting session with %q: %w", peer, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session created with %s. Peer fingerprint: %s\n", peer, fp)
				return nil
			})
		},
	}
}
