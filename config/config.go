// Package config loads binding settings from a TOML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/VanDung-dev/eric-go/bridge"
	"github.com/VanDung-dev/eric-go/logging"
	"github.com/VanDung-dev/eric-go/versions"
)

// DefaultDotenv is read by LoadDotenv when no path is given and the file exists.
const DefaultDotenv = ".env"

// Config holds every setting the CLI and the service accept.
type Config struct {
	// Home is the ERiC installation root containing lib/ and erictoolkit/.
	Home            string          `toml:"home" env:"ERIC_HOME"`
	LogDir          string          `toml:"log_dir" env:"ERIC_LOG_DIR"`
	Version         string          `toml:"version" env:"ERIC_VERSION"`
	ExpectedVersion string          `toml:"expected_version" env:"ERIC_EXPECTED_VERSION"`
	VersionPolicy   versions.Policy `toml:"version_policy" env:"ERIC_VERSION_POLICY"`
	// WriteLogFile keeps the engine's own eric.log in LogDir.
	WriteLogFile bool   `toml:"write_log_file" env:"ERIC_WRITE_LOG_FILE"`
	LogLevel     string `toml:"log_level" env:"ERIC_LOG_LEVEL"`

	Service Service `toml:"service"`
}

// Service configures `eric serve`.
type Service struct {
	Address        string `toml:"address" env:"ERIC_SERVICE_ADDR"`
	MetricsAddress string `toml:"metrics_address" env:"ERIC_METRICS_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		VersionPolicy: versions.PolicyWarn,
		LogLevel:      "info",
		Service: Service{
			Address:        "tcp://127.0.0.1:5570",
			MetricsAddress: ":9091",
		},
	}
}

// Load reads the TOML file at path (skipped when empty) and applies
// environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotenv exports the variables in path without overriding ones already
// set. An empty path reads DefaultDotenv if it exists.
func LoadDotenv(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultDotenv); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = DefaultDotenv
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that decoding alone does not.
func (c Config) Validate() error {
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Service.Address == "" {
		return errors.New("service address must not be empty")
	}
	return nil
}

// BridgeOptions maps the configuration onto client options. Logger, metrics
// and the library opener are left for the caller.
func (c Config) BridgeOptions() bridge.Options {
	return bridge.Options{
		Home:            c.Home,
		LogDir:          c.LogDir,
		Version:         c.Version,
		ExpectedVersion: c.ExpectedVersion,
		Policy:          c.VersionPolicy,
		WriteEngineLog:  c.WriteLogFile,
	}
}
