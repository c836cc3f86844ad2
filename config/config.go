// Package config holds the user configuration of qlflow.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/daedaleanai/qlflow/log"
	"github.com/daedaleanai/qlflow/util"
)

// Config is read from config.yaml in the configuration directory.
type Config struct {
	// Release of the installed toolchain, e.g. v1.3.0. Takes precedence over the platform file.
	ToolchainVersion string `yaml:"toolchain_version"`
	// Build directory used when none is given on the command line.
	BuildDir string `yaml:"build_dir"`
	// Paths of the toolchain binaries, by tool name.
	Tools map[string]string `yaml:"tools"`
}

const configFileName = "config.yaml"

var config *Config

// Dir returns the configuration directory: $QLFLOW_CONFIG_DIR, $XDG_CONFIG_HOME/qlflow or
// ~/.config/qlflow.
func Dir() (string, error) {
	if dir := os.Getenv("QLFLOW_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "qlflow"), nil
	}
	homeDir, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("unable to locate the configuration directory: %s", err)
	}
	return filepath.Join(homeDir, ".config", "qlflow"), nil
}

// Load reads the configuration file in `dir`. A missing file yields the default configuration.
func Load(dir string) (Config, error) {
	var cfg Config
	configFilePath := filepath.Join(dir, configFileName)
	if !util.FileExists(configFilePath) {
		log.Debug("No configuration file at '%s'. Using default configuration.\n", configFilePath)
		return cfg, nil
	}
	if err := util.ReadYaml(configFilePath, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.ToolchainVersion != "" {
		if _, err := util.ParseVersion(cfg.ToolchainVersion); err != nil {
			return Config{}, errors.Wrapf(err, "invalid 'toolchain_version' in '%s'", configFilePath)
		}
	}

	log.Debug("Loaded configuration from '%s'.\n", configFilePath)
	log.Debug("Running with configuration: %+v\n", cfg)
	return cfg, nil
}

// GetConfig returns the configuration, loading it on first use. Unreadable configuration is reported
// and replaced by the default configuration.
func GetConfig() Config {
	if config == nil {
		var loaded Config
		dir, err := Dir()
		if err != nil {
			log.Debug("%s. Using default configuration.\n", err)
		} else if loaded, err = Load(dir); err != nil {
			log.Warning("%s. Using default configuration.\n", err)
		}
		config = &loaded
	}
	return *config
}
