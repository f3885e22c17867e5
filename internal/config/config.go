// Package config resolves server settings from the optional YAML file
// and the environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved server configuration.
type Config struct {
	// RepoPath is the repository to bind at startup. Empty means
	// discover via git rev-parse from the current directory.
	RepoPath string `yaml:"repo_path"`

	// AgentBinary is the external agent executable name.
	AgentBinary string `yaml:"agent_binary"`

	// AgentToolsDirs are candidate directories probed and prepended
	// to PATH when launching the agent.
	AgentToolsDirs []string `yaml:"agent_tools_dirs"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// RateLimitCapacity is the gh token bucket size per window.
	RateLimitCapacity int `yaml:"rate_limit_capacity"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		AgentBinary: "codex",
		AgentToolsDirs: []string{
			"/usr/local/bin",
			"/opt/homebrew/bin",
		},
		LogLevel:          "info",
		RateLimitCapacity: 60,
	}
}

// Load resolves configuration: defaults, then the YAML file under
// home's config dir if present, then environment overrides.
func Load(home string) (Config, error) {
	cfg := Defaults()

	path := filepath.Join(home, ".config", "gitcrew", "config.yml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("REPO_PATH"); v != "" {
		cfg.RepoPath = v
	}
	if v := os.Getenv("GITCREW_AGENT"); v != "" {
		cfg.AgentBinary = v
	}
	if v := os.Getenv("GITCREW_AGENT_TOOLS_DIRS"); v != "" {
		cfg.AgentToolsDirs = strings.Split(v, string(os.PathListSeparator))
	}
	if v := os.Getenv("GITCREW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}
