package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no explicit
// path or SLAUDE_CONFIG is given.
const DefaultConfigFile = "slaude.yaml"

// Load builds the effective configuration.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SLAUDE_CONFIG env, ./slaude.yaml)
//  3. Environment variable overrides
//  4. session_key_file resolution
//  5. Validation
func Load(configPath string) (*ServerConfig, error) {
	cfg := Defaults()

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveSessionKeyFile(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := strings.TrimSpace(os.Getenv("SLAUDE_CONFIG")); envPath != "" {
		return envPath
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

func loadYAMLFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// resolveSessionKeyFile reads the session key from session_key_file when no
// inline key is set. The file content is trimmed of surrounding whitespace.
func resolveSessionKeyFile(cfg *ServerConfig) error {
	if cfg.SessionKey != "" || cfg.SessionKeyFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.SessionKeyFile)
	if err != nil {
		return fmt.Errorf("reading session_key_file: %w", err)
	}
	cfg.SessionKey = strings.TrimSpace(string(data))
	return nil
}

// Marshal renders cfg as YAML with secrets redacted.
func Marshal(cfg *ServerConfig) ([]byte, error) {
	redacted := *cfg
	if redacted.SessionKey != "" {
		redacted.SessionKey = "<redacted>"
	}
	if redacted.Cookie != "" {
		redacted.Cookie = "<redacted>"
	}
	if redacted.AccessToken != "" {
		redacted.AccessToken = "<redacted>"
	}
	return yaml.Marshal(&redacted)
}
