package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"paircrypt/internal/app"
	"paircrypt/internal/config"
)

const passphraseEnv = "PAIRCRYPT_PASSPHRASE"

var (
	home       string
	configFile string
	passphrase string
	relayURL   string
	deviceID   string
	logLevel   string

	appCtx *app.App
)

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "paircrypt",
		Short:         "End-to-end encrypted messaging over a store-and-forward relay",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := app.DefaultHome()
				if err != nil {
					return err
				}
				home = dir
			}
			cfg, err := app.LoadConfig(home, configFile)
			if err != nil {
				return err
			}
			if err := applyFlags(cfg); err != nil {
				return err
			}
			appCtx, err = app.New(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&home, "home", "", "state directory (default ~/.paircrypt)")
	pf.StringVarP(&configFile, "config", "c", "", "config file (default <home>/paircrypt.toml)")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "keystore passphrase (or $"+passphraseEnv+")")
	pf.StringVar(&relayURL, "relay", "", "relay base URL, e.g. http://127.0.0.1:8080")
	pf.StringVar(&deviceID, "device", "", "device ID registered at the relay")
	pf.StringVar(&logLevel, "log-level", "", "log level: ERROR, WARNING, NOTICE, INFO or DEBUG")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		startSessionCmd(),
		sendCmd(),
		recvCmd(),
		peersCmd(),
		resetCmd(),
	)
	return root
}

func applyFlags(cfg *config.Client) error {
	if relayURL != "" {
		cfg.RelayURL = relayURL
	}
	if deviceID != "" {
		cfg.DeviceID = deviceID
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg.FixupAndValidate()
}

func requirePassphrase() (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("passphrase required (-p or $%s)", passphraseEnv)
}

func requireDevice() error {
	if appCtx.Config.DeviceID == "" {
		return fmt.Errorf("device ID required (--device or DeviceID in the config file)")
	}
	return nil
}

// unlocked runs fn with the unlocked client and closes it afterwards.
func unlocked(fn func(w *app.Wire) error) error {
	p, err := requirePassphrase()
	if err != nil {
		return err
	}
	w, err := appCtx.Unlock(p)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(w)
}
