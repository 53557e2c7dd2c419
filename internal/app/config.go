package app

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"paircrypt/internal/config"
)

// ConfigFileName is the client config file looked up in the home directory.
const ConfigFileName = "paircrypt.toml"

// DefaultHome returns ~/.paircrypt.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".paircrypt"), nil
}

// LoadConfig reads file, or home/paircrypt.toml when file is empty. A
// missing default file yields the defaults for home.
func LoadConfig(home, file string) (*config.Client, error) {
	if file == "" {
		file = filepath.Join(home, ConfigFileName)
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			cfg := &config.Client{Home: home}
			if err := cfg.FixupAndValidate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}
	cfg, err := config.LoadClientFile(file)
	if err != nil {
		return nil, err
	}
	if cfg.Home == "" {
		cfg.Home = home
	}
	return cfg, nil
}
