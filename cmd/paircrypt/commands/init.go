package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var oneTime int
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and pre-keys and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := requirePassphrase()
			if err != nil {
				return err
			}
			if oneTime <= 0 {
				oneTime = appCtx.Config.Session.OneTimePreKeys
			}
			id, fp, err := appCtx.Identity.GenerateIdentity(p)
			if err != nil {
				return err
			}
			if _, _, err := appCtx.PreKeys.GenerateAndStorePreKeys(id, oneTime); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created.\nFingerprint: %s\n", fp)
			return nil
		},
	}
	cmd.Flags().IntVar(&oneTime, "one-time-prekeys", 0, "number of one-time pre-keys (default from config)")
	return cmd
}
