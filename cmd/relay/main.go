package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"paircrypt/internal/config"
	"paircrypt/internal/log"
	"paircrypt/internal/relay/server"
)

func main() {
	if err := newRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var (
		configFile string
		listen     string
		spoolFile  string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Run the paircrypt store-and-forward relay",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Relay{}
			if configFile != "" {
				var err error
				if cfg, err = config.LoadRelayFile(configFile); err != nil {
					return err
				}
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if spoolFile != "" {
				cfg.SpoolFile = spoolFile
			}
			if logLevel != "" {
				if cfg.Logging == nil {
					cfg.Logging = &config.Logging{}
				}
				cfg.Logging.Level = logLevel
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&spoolFile, "spool", "", "spool database file (default relay.db)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level")
	return cmd
}

func run(cfg *config.Relay) error {
	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return err
	}
	defer backend.Close()
	logger := backend.GetLogger("relay")

	spool, err := server.OpenSpool(cfg.SpoolFile, cfg.Retention, cfg.MaxQueue)
	if err != nil {
		logger.Errorf("%v", err)
		return err
	}
	defer spool.Close()

	srv, err := server.New(spool, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hs := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          backend.GetGoLogger("http", "WARNING"),
	}
	go srv.RunPurger(ctx, cfg.PurgeInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.Noticef("relay listening on %s (spool %s, retention %s, queue bound %d)",
			cfg.Listen, cfg.SpoolFile, cfg.Retention, cfg.MaxQueue)
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("listen: %v", err)
			return err
		}
	case <-ctx.Done():
		logger.Notice("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
