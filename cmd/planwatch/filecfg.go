package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultServerURL = "http://localhost:8000"

// fileConfig is the optional planwatch.yaml.
type fileConfig struct {
	Server    string `yaml:"server"`
	ModelKey  string `yaml:"model_key"`
	FlushMs   int    `yaml:"flush_ms"`
	Transport string `yaml:"transport"`
}

// loadFileConfig reads the config file from --config, the working
// directory, or $HOME, in that order. A missing file is not an error.
func loadFileConfig() (fileConfig, error) {
	var cfg fileConfig

	candidates := []string{}
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "planwatch.yaml")
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".planwatch.yaml"))
		}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && configPath == "" {
				continue
			}
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file %s does not exist", path)
			}
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// resolveServer picks the server URL from the flag, config file, or
// default.
func resolveServer(cfg fileConfig) string {
	if serverURL != "" {
		return serverURL
	}
	if cfg.Server != "" {
		return cfg.Server
	}
	return defaultServerURL
}
