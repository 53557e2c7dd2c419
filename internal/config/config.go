// Package config loads the TOML configuration of the paircrypt client and
// relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Logging is the logging configuration shared by the client and the relay.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file. If omitted, stdout is used.
	File string

	// Level specifies the log level.
	Level string
}

// DefaultLogging returns the logging block used when none is configured.
func DefaultLogging() Logging {
	return Logging{Level: "NOTICE"}
}

// Validate checks the log level and normalises its case.
func (l *Logging) Validate() error {
	lvl := strings.ToUpper(l.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = "NOTICE"
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", l.Level)
	}
	l.Level = lvl
	return nil
}

type validator interface {
	FixupAndValidate() error
}

func load(b []byte, cfg validator) error {
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return fmt.Errorf("config: undecoded keys in config file: %v", undecoded)
	}
	return cfg.FixupAndValidate()
}

func loadFile(f string, cfg validator) error {
	b, err := os.ReadFile(f)
	if err != nil {
		return err
	}
	return load(b, cfg)
}

var errNoHome = errors.New("config: Home is not set")
