package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const credentialsFilename = "credentials.json"

// Credentials is the session material presented to the upstream service.
type Credentials struct {
	SessionKey string `json:"session_key"`
	// Cookie holds additional raw cookie pairs ("a=b; c=d") sent alongside the
	// session key. It may itself carry sessionKey=..., in which case SessionKey
	// can be left empty.
	Cookie    string `json:"cookie,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	SavedAt   string `json:"saved_at,omitempty"`
}

// EffectiveSessionKey returns SessionKey, falling back to the sessionKey pair
// inside Cookie.
func (c *Credentials) EffectiveSessionKey() string {
	if c == nil {
		return ""
	}
	if key := strings.TrimSpace(c.SessionKey); key != "" {
		return key
	}
	return cookieValue(c.Cookie, sessionCookieName)
}

// Expiry parses ExpiresAt. The zero time means the credentials never expire.
func (c *Credentials) Expiry() time.Time {
	if c == nil || c.ExpiresAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, c.ExpiresAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HomeDir returns the credential storage directory path.
func HomeDir() string {
	if d := os.Getenv("SLAUDE_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".slaude")
}

// DefaultCredentialsPath is the credentials file inside HomeDir.
func DefaultCredentialsPath() string {
	return filepath.Join(HomeDir(), credentialsFilename)
}

// ReadCredentialsFile loads credentials from path, or from
// DefaultCredentialsPath when path is empty.
func ReadCredentialsFile(path string) (*Credentials, error) {
	if path == "" {
		path = DefaultCredentialsPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	if creds.EffectiveSessionKey() == "" {
		return nil, ErrNoCredentials
	}
	return &creds, nil
}

// WriteCredentialsFile persists creds to the home directory with 0600 permissions.
func WriteCredentialsFile(creds *Credentials) error {
	dir := HomeDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create credentials directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, credentialsFilename), data, 0o600)
}

// NowISO8601 returns the current UTC time in ISO 8601 format.
func NowISO8601() string {
	return time.Now().UTC().Format(time.RFC3339)
}
