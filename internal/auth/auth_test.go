package auth

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestHomeDir(t *testing.T) {
	t.Setenv("SLAUDE_HOME", "/tmp/test-home")
	if got := HomeDir(); got != "/tmp/test-home" {
		t.Errorf("expected /tmp/test-home, got %s", got)
	}

	t.Setenv("SLAUDE_HOME", "")
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".slaude")
	if got := HomeDir(); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestReadWriteCredentialsFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SLAUDE_HOME", tmpDir)

	creds := &Credentials{
		SessionKey: "sk-ant-sid01-test",
		Cookie:     "cf_clearance=abc",
		SavedAt:    "2024-01-01T00:00:00Z",
	}
	if err := WriteCredentialsFile(creds); err != nil {
		t.Fatalf("WriteCredentialsFile failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, "credentials.json"))
	if err != nil {
		t.Fatalf("stat credentials.json: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	read, err := ReadCredentialsFile("")
	if err != nil {
		t.Fatalf("ReadCredentialsFile failed: %v", err)
	}
	if read.SessionKey != creds.SessionKey || read.Cookie != creds.Cookie {
		t.Errorf("round trip mismatch: %+v vs %+v", read, creds)
	}
}

func TestReadCredentialsFileMissing(t *testing.T) {
	t.Setenv("SLAUDE_HOME", t.TempDir())
	if _, err := ReadCredentialsFile(""); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestEffectiveSessionKeyFromCookie(t *testing.T) {
	c := &Credentials{Cookie: "intercom=1; sessionKey=sk-from-cookie; cf=2"}
	if got := c.EffectiveSessionKey(); got != "sk-from-cookie" {
		t.Fatalf("got %q", got)
	}
	var nilCreds *Credentials
	if got := nilCreds.EffectiveSessionKey(); got != "" {
		t.Fatalf("nil credentials: got %q", got)
	}
}

func TestTokenSourcePrefersStatic(t *testing.T) {
	t.Setenv("SLAUDE_HOME", t.TempDir())
	ts := NewTokenSource(&Credentials{SessionKey: "sk-inline"}, "")
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "sk-inline" {
		t.Fatalf("AccessToken: got %q", tok.AccessToken)
	}
}

func TestTokenSourceFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLAUDE_HOME", dir)
	if err := WriteCredentialsFile(&Credentials{SessionKey: "sk-file"}); err != nil {
		t.Fatal(err)
	}

	ts := NewTokenSource(&Credentials{}, "")
	tok, err := ts.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "sk-file" {
		t.Fatalf("AccessToken: got %q", tok.AccessToken)
	}
}

func TestTokenSourceNoCredentials(t *testing.T) {
	t.Setenv("SLAUDE_HOME", t.TempDir())
	_, err := NewTokenSource(nil, "").Token()
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestCredentialSourceExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	src := &credentialSource{
		static: &Credentials{SessionKey: "sk", ExpiresAt: "2025-01-01T11:00:00Z"},
		now:    func() time.Time { return now },
	}
	if _, err := src.Token(); !errors.Is(err, ErrCredentialsExpired) {
		t.Fatalf("expected ErrCredentialsExpired, got %v", err)
	}

	src.static.ExpiresAt = "2025-01-01T13:00:00Z"
	tok, err := src.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if !tok.Expiry.Equal(time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("Expiry: got %s", tok.Expiry)
	}
}

func TestApplyCookie(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  string
	}{
		{
			name:  "session key only",
			token: (&oauth2.Token{AccessToken: "sk-1"}).WithExtra(map[string]any{"cookie": ""}),
			want:  "sessionKey=sk-1",
		},
		{
			name:  "extra pairs appended",
			token: (&oauth2.Token{AccessToken: "sk-1"}).WithExtra(map[string]any{"cookie": "cf_clearance=x; __cf_bm=y"}),
			want:  "sessionKey=sk-1; cf_clearance=x; __cf_bm=y",
		},
		{
			name:  "duplicate session pair dropped",
			token: (&oauth2.Token{AccessToken: "sk-1"}).WithExtra(map[string]any{"cookie": "sessionKey=sk-1; a=b"}),
			want:  "sessionKey=sk-1; a=b",
		},
		{
			name:  "token without extra",
			token: &oauth2.Token{AccessToken: "sk-2"},
			want:  "sessionKey=sk-2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			ApplyCookie(h, tt.token)
			if got := h.Get("Cookie"); got != tt.want {
				t.Fatalf("Cookie: got %q, want %q", got, tt.want)
			}
		})
	}
}
