package app

import (
	"errors"
	"os"

	"gopkg.in/op/go-logging.v1"

	"paircrypt/internal/config"
	"paircrypt/internal/domain"
	"paircrypt/internal/log"
	"paircrypt/internal/relay"
	"paircrypt/internal/services/identity"
	"paircrypt/internal/services/prekey"
	"paircrypt/internal/store"
)

// ErrNoRelay is returned by operations that need a relay when none is
// configured.
var ErrNoRelay = errors.New("app: no relay configured")

// App holds the passphrase-independent part of the client.
type App struct {
	Config *config.Client
	Log    *log.Backend

	Identity    *identity.Service
	PreKeys     *prekey.Service
	PreKeyStore domain.PreKeyStore
	relay       *relay.HTTP

	log *logging.Logger
}

// New builds an App from cfg, creating the home directory if needed.
func New(cfg *config.Client) (*App, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	backend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, err
	}
	ps := store.NewPreKeyFileStore(cfg.Home)
	a := &App{
		Config:      cfg,
		Log:         backend,
		Identity:    identity.New(store.NewIdentityFileStore(cfg.Home)),
		PreKeys:     prekey.New(ps),
		PreKeyStore: ps,
		log:         backend.GetLogger("app"),
	}
	if cfg.RelayURL != "" {
		a.relay = relay.NewHTTP(cfg.RelayURL, cfg.RequestTimeout)
	}
	return a, nil
}

// Relay returns the relay client, or ErrNoRelay.
func (a *App) Relay() (domain.RelayClient, error) {
	if a.relay == nil {
		return nil, ErrNoRelay
	}
	return a.relay, nil
}

// Close releases the log backend.
func (a *App) Close() error {
	return a.Log.Close()
}
