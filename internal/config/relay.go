package config

import (
	"errors"
	"net"
	"time"
)

const (
	DefaultListen        = ":8080"
	DefaultRetention     = 24 * time.Hour
	DefaultMaxQueue      = 1000
	DefaultPurgeInterval = time.Minute
	defaultSpoolFileName = "relay.db"
)

// Relay is the configuration of the relay server.
type Relay struct {
	// Listen is the address the HTTP API listens on.
	Listen string

	// SpoolFile is the bbolt database holding bundles and queues.
	SpoolFile string

	// Retention is how long an unacknowledged envelope is kept.
	Retention time.Duration

	// PurgeInterval is how often expired envelopes are dropped.
	PurgeInterval time.Duration

	// MaxQueue bounds the envelopes queued for one device.
	MaxQueue int

	Logging *Logging
}

// FixupAndValidate applies defaults and checks the configuration.
func (c *Relay) FixupAndValidate() error {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.New("config: Relay: Listen '" + c.Listen + "' is not host:port")
	}
	if c.SpoolFile == "" {
		c.SpoolFile = defaultSpoolFileName
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = DefaultPurgeInterval
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = DefaultMaxQueue
	}
	if c.Logging == nil {
		l := DefaultLogging()
		c.Logging = &l
	}
	return c.Logging.Validate()
}

// LoadRelay parses and validates b as a relay config file body.
func LoadRelay(b []byte) (*Relay, error) {
	cfg := new(Relay)
	if err := load(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRelayFile loads, parses and validates the relay config file f.
func LoadRelayFile(f string) (*Relay, error) {
	cfg := new(Relay)
	if err := loadFile(f, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
