package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	sessionCookieName = "sessionKey"
	tokenType         = "session"
	extraCookieKey    = "cookie"
)

// credentialSource produces tokens from inline credentials or, when none are
// configured, from the credentials file. The file is re-read whenever the
// wrapping ReuseTokenSource decides the cached token is no longer valid.
type credentialSource struct {
	mu     sync.Mutex
	static *Credentials
	path   string
	now    func() time.Time
}

// NewTokenSource returns an oauth2.TokenSource over the session credential.
// Inline credentials (env or config) take priority over the file at path.
func NewTokenSource(static *Credentials, path string) oauth2.TokenSource {
	if static != nil && static.EffectiveSessionKey() == "" {
		static = nil
	}
	return oauth2.ReuseTokenSource(nil, &credentialSource{
		static: static,
		path:   path,
		now:    time.Now,
	})
}

// Token implements oauth2.TokenSource.
func (s *credentialSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.static
	if creds == nil {
		var err error
		creds, err = ReadCredentialsFile(s.path)
		if err != nil {
			return nil, err
		}
	}

	expiry := creds.Expiry()
	if !expiry.IsZero() && !s.now().Before(expiry) {
		return nil, ErrCredentialsExpired
	}

	tok := &oauth2.Token{
		AccessToken: creds.EffectiveSessionKey(),
		TokenType:   tokenType,
		Expiry:      expiry,
	}
	return tok.WithExtra(map[string]any{extraCookieKey: creds.Cookie}), nil
}

// ApplyCookie renders tok as the Cookie header: the session key first, then
// any extra cookie pairs carried with the token, without duplicating the
// session key pair.
func ApplyCookie(headers http.Header, tok *oauth2.Token) {
	if headers == nil || tok == nil {
		return
	}
	parts := []string{sessionCookieName + "=" + tok.AccessToken}
	extra, _ := tok.Extra(extraCookieKey).(string)
	for _, pair := range splitCookie(extra) {
		name, _, _ := strings.Cut(pair, "=")
		if strings.TrimSpace(name) == sessionCookieName {
			continue
		}
		parts = append(parts, pair)
	}
	headers.Set("Cookie", strings.Join(parts, "; "))
}

func splitCookie(raw string) []string {
	var out []string
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		out = append(out, pair)
	}
	return out
}

func cookieValue(raw, name string) string {
	for _, pair := range splitCookie(raw) {
		k, v, _ := strings.Cut(pair, "=")
		if strings.TrimSpace(k) == name {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
