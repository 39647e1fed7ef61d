package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 5004
	DefaultUpstreamURL    = "https://claude.ai"
	DefaultRequestTimeout = 5 * time.Minute
	DefaultResolveTimeout = 30 * time.Second
)

// ServerConfig holds all server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	UpstreamURL    string        `yaml:"upstream_base_url"`
	SessionKey     string        `yaml:"session_key"`
	SessionKeyFile string        `yaml:"session_key_file"`
	Cookie         string        `yaml:"cookie"`
	Organization   string        `yaml:"organization"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout"`
	AccessToken    string        `yaml:"access_token"`
	UserAgents     []string      `yaml:"user_agents"`
	Verbose        bool          `yaml:"verbose"`
	Debug          bool          `yaml:"debug"`
	LogJSON        bool          `yaml:"log_json"`
	Pretty         bool          `yaml:"pretty"`
}

// Addr returns the host:port pair the inbound listener binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Defaults returns a ServerConfig populated with built-in defaults only.
func Defaults() ServerConfig {
	return ServerConfig{
		Host:           DefaultHost,
		Port:           DefaultPort,
		UpstreamURL:    DefaultUpstreamURL,
		RequestTimeout: DefaultRequestTimeout,
		ResolveTimeout: DefaultResolveTimeout,
	}
}

// DefaultFromEnv creates a ServerConfig with defaults from environment variables.
func DefaultFromEnv() *ServerConfig {
	cfg := Defaults()
	applyEnvOverrides(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *ServerConfig) {
	if v := strings.TrimSpace(os.Getenv("SLAUDE_HOST")); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("SLAUDE_PORT"); ok {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_UPSTREAM_URL")); v != "" {
		cfg.UpstreamURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_SESSION_KEY")); v != "" {
		cfg.SessionKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_SESSION_KEY_FILE")); v != "" {
		cfg.SessionKeyFile = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_COOKIE")); v != "" {
		cfg.Cookie = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_ORGANIZATION")); v != "" {
		cfg.Organization = v
	}
	if v, ok := envDuration("SLAUDE_REQUEST_TIMEOUT"); ok {
		cfg.RequestTimeout = v
	}
	if v, ok := envDuration("SLAUDE_RESOLVE_TIMEOUT"); ok {
		cfg.ResolveTimeout = v
	}
	if v := strings.TrimSpace(os.Getenv("SLAUDE_ACCESS_TOKEN")); v != "" {
		cfg.AccessToken = v
	}
	if envBool("SLAUDE_VERBOSE") {
		cfg.Verbose = true
	}
	if envBool("SLAUDE_DEBUG") {
		cfg.Debug = true
	}
	if envBool("SLAUDE_LOG_JSON") {
		cfg.LogJSON = true
	}
}

// Validate reports configuration values that cannot produce a working server.
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.UpstreamURL, "http://") && !strings.HasPrefix(c.UpstreamURL, "https://") {
		return fmt.Errorf("upstream_base_url %q must be an http(s) URL", c.UpstreamURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve_timeout must be positive")
	}
	for _, ua := range c.UserAgents {
		if !isValidHeaderValue(ua) {
			return fmt.Errorf("user agent %q is not a valid header value", ua)
		}
	}
	return nil
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
