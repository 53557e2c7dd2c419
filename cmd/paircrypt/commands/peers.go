package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
	"paircrypt/internal/domain"
	"paircrypt/internal/services/identity"
)

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "List peers with a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return unlocked(func(w *app.Wire) error {
				peers, err := w.Directory.Peers()
				if err != nil {
					return err
				}
				for _, p := range peers {
					ik, err := w.Directory.PeerIdentity(p)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, identity.Fingerprint(ik))
				}
				return nil
			})
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <peer>",
		Short: "Discard the session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return unlocked(func(w *app.Wire) error {
				if err := w.Directory.Teardown(domain.DeviceID(args[0])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session with %s discarded\n", args[0])
				return nil
			})
		},
	}
}
