package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound wraps an error reading the configuration file other than
// its absence. An absent file is not an error: Load falls back to Defaults(),
// since every field has a sensible default and only the provider API keys
// are actually required (checked separately by the caller at process start).
var ErrConfigNotFound = errors.New("config: file not found")

// ErrInvalidYAML is returned when the configuration file cannot be parsed.
var ErrInvalidYAML = errors.New("config: invalid yaml")

// yamlConfig mirrors Config's shape for unmarshalling; kept separate from
// Config itself so the yaml tags and the mergo merge target stay decoupled
// from any future non-YAML fields Config grows (like configDir).
type yamlConfig struct {
	HTTPPort      int    `yaml:"http_port"`
	WorkspaceRoot string `yaml:"workspace_root"`
	Providers     Providers `yaml:"providers"`
	Models        Models    `yaml:"models"`
	Limits        Limits    `yaml:"limits"`
}

// Load reads deepresearch.yaml from configDir (if present), expands
// ${VAR}/$VAR references against the process environment, optionally loads a
// sibling .env file for local development, and merges the result over
// Defaults() so a partial file only overrides what it sets.
func Load(configDir string) (*Config, error) {
	log := slog.With("component", "config", "config_dir", configDir)

	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "path", envPath, "error", err)
	}

	cfg := Defaults()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "deepresearch.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no deepresearch.yaml found, using defaults")
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigNotFound, path, err)
	}

	data = ExpandEnv(data)

	var parsed yamlConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	if err := mergo.Merge(cfg, &Config{
		HTTPPort:      parsed.HTTPPort,
		WorkspaceRoot: parsed.WorkspaceRoot,
		Providers:     parsed.Providers,
		Models:        parsed.Models,
		Limits:        parsed.Limits,
	}, mergo.WithOverride, mergo.WithoutDereference); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	log.Info("configuration loaded",
		"http_port", cfg.HTTPPort,
		"workspace_root", cfg.WorkspaceRoot,
		"max_agents", cfg.Limits.MaxAgents)

	return cfg, nil
}
