package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the qnn configuration file (~/.config/qnn/config.yaml).
// Scalar fields are pointers so "not set" differs from the zero value.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Runtime
	Cores      string `yaml:"cores"`
	Dispatcher string `yaml:"dispatcher"`
	PinThreads *bool  `yaml:"pin_threads"`
	Stager     string `yaml:"stager"`
	Autoload   *bool  `yaml:"autoload"`
	ArenaBytes *int64 `yaml:"arena_bytes"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "qnn", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig copies config values into the flag variables the user did
// not set explicitly.
func applyConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
	if cfg.Cores != "" && !c.IsSet("cores") {
		coreList = cfg.Cores
	}
	if cfg.Dispatcher != "" && !c.IsSet("dispatcher") {
		dispatcher = cfg.Dispatcher
	}
	if cfg.PinThreads != nil && !c.IsSet("pin-threads") {
		pinThreads = *cfg.PinThreads
	}
	if cfg.Stager != "" && !c.IsSet("stager") {
		stagerName = cfg.Stager
	}
	if cfg.ArenaBytes != nil && !c.IsSet("arena-bytes") {
		arenaBytes = *cfg.ArenaBytes
	}
}

// applyAutoloadConfig resolves the autoload setting for commands that run a
// pipeline: the flag wins, then the config file, then the pipeline file.
func applyAutoloadConfig(c *cli.Command, cfg Config, pipelineDefault bool) bool {
	if c.IsSet("autoload") {
		return autoload
	}
	if cfg.Autoload != nil {
		return *cfg.Autoload
	}
	return pipelineDefault
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
