package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

const (
	// DefaultMaxSkip is the per-epoch skipped message key bound.
	DefaultMaxSkip = 100
	// DefaultOneTimePreKeys is how many one-time pre-keys register publishes
	// and recv tops the pool back up to.
	DefaultOneTimePreKeys = 10
	// DefaultRequestTimeout bounds each relay request.
	DefaultRequestTimeout = 30 * time.Second
)

// Session holds the session directory settings.
type Session struct {
	// MaxSkip bounds the skipped message keys cached per ratchet epoch.
	MaxSkip int

	// OneTimePreKeys is the size of the one-time pre-key pool.
	OneTimePreKeys int
}

// Client is the configuration of the paircrypt CLI.
type Client struct {
	// Home is the directory holding the keystore, pre-keys and sessions.
	Home string

	// RelayURL is the base URL of the relay.
	RelayURL string

	// DeviceID is the name this device registers under at the relay.
	DeviceID string

	// RequestTimeout bounds each relay request.
	RequestTimeout time.Duration

	Logging *Logging
	Session *Session
}

// SessionsFile returns the path of the session database.
func (c *Client) SessionsFile() string {
	return filepath.Join(c.Home, "sessions.db")
}

// FixupAndValidate applies defaults and checks the configuration.
func (c *Client) FixupAndValidate() error {
	if c.Home == "" {
		return errNoHome
	}
	if c.RelayURL != "" {
		u, err := url.Parse(c.RelayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config: RelayURL '%v' is not an absolute URL", c.RelayURL)
		}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Logging == nil {
		l := DefaultLogging()
		c.Logging = &l
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Session == nil {
		c.Session = &Session{}
	}
	if c.Session.MaxSkip < 0 {
		return fmt.Errorf("config: Session: MaxSkip %d is negative", c.Session.MaxSkip)
	}
	if c.Session.MaxSkip == 0 {
		c.Session.MaxSkip = DefaultMaxSkip
	}
	if c.Session.OneTimePreKeys <= 0 {
		c.Session.OneTimePreKeys = DefaultOneTimePreKeys
	}
	return nil
}

// LoadClient parses and validates b as a client config file body.
func LoadClient(b []byte) (*Client, error) {
	cfg := new(Client)
	if err := load(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientFile loads, parses and validates the client config file f.
func LoadClientFile(f string) (*Client, error) {
	cfg := new(Client)
	if err := loadFile(f, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
