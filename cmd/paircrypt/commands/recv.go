package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
)

// recvCmd fetches and decrypts queued messages.
func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDevice(); err != nil {
				return err
			}
			return unlocked(func(w *app.Wire) error {
				m, err := w.RequireMessages()
				if err != nil {
					return err
				}
				msgs, err := m.ReceiveMessages(cmd.Context(), limit)
				for _, msg := range msgs {
					ts := time.Unix(msg.Timestamp, 0).Format(time.DateTime)
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", ts, msg.From, msg.Plaintext)
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of envelopes to fetch (0 for all)")
	return cmd
}
