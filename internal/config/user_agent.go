package config

import (
	"math/rand/v2"
	"net/http"
	"strings"
)

// DefaultUserAgents is the built-in client-identifier pool. One entry is chosen
// per process start and sent on every upstream call.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (X11; U; Linux armv7l like Android; en-us) AppleWebKit/531.2+ (KHTML, like Gecko) Version/5.0 Safari/533.2+ Kindle/3.0+",
	"Mozilla/5.0 (Linux; U; Android 1.6; en-us; SonyEricssonX10i Build/R1AA056) AppleWebKit/528.5  (KHTML, like Gecko) Version/3.1.2 Mobile Safari/525.20.1",
	"Mozilla/5.0 (Linux; U; Android 2.2; en-us; Sprint APA9292KT Build/FRF91) AppleWebKit/533.1 (KHTML, like Gecko) Version/4.0 Mobile Safari/533.1",
	"Mozilla/5.0 (Android 6.0.1; Mobile; rv:48.0) Gecko/48.0 Firefox/48.0",
	"Mozilla/5.0 (Linux; U; Android 3.0.1; en-us; GT-P7100 Build/HRI83) AppleWebkit/534.13 (KHTML, like Gecko) Version/4.0 Safari/534.13",
	"Mozilla/5.0 (iPod; U; CPU iPhone OS 3_1_1 like Mac OS X; en-us) AppleWebKit/528.18 (KHTML, like Gecko) Mobile/7C145",
	"Mozilla/5.0 (iPhone; U; CPU iPhone OS 2_0 like Mac OS X; en-us) AppleWebKit/525.18.1 (KHTML, like Gecko) Version/3.1.1 Mobile/5A347 Safari/525.200",
	"Mozilla/5.0 (iPad; CPU OS 6_0 like Mac OS X) AppleWebKit/536.26 (KHTML, like Gecko) Version/6.0 Mobile/10A5355d Safari/8536.25",
	"Mozilla/5.0 (iPhone; U; CPU iPhone OS 4_2_1 like Mac OS X; da-dk) AppleWebKit/533.17.9 (KHTML, like Gecko) Version/5.0.2 Mobile/8C148 Safari/6533.18.5",
}

// fallbackUserAgent is used when the configured pool has no usable entry.
const fallbackUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko)"

// PickUserAgent returns one valid entry of pool chosen by intn, or a fixed
// fallback when pool is empty or holds no valid header value.
// A nil intn uses math/rand/v2.
func PickUserAgent(pool []string, intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	valid := make([]string, 0, len(pool))
	for _, ua := range pool {
		if isValidHeaderValue(ua) {
			valid = append(valid, ua)
		}
	}
	if len(valid) == 0 {
		return fallbackUserAgent
	}
	return valid[intn(len(valid))]
}

// UserAgentPool returns the configured pool or the built-in default.
func (c *ServerConfig) UserAgentPool() []string {
	if len(c.UserAgents) > 0 {
		return c.UserAgents
	}
	return DefaultUserAgents
}

// ApplyDefaultHeaders sets the headers every upstream call carries.
func ApplyDefaultHeaders(headers http.Header, userAgent string) {
	if headers == nil {
		return
	}
	headers.Set("User-Agent", sanitizeUserAgent(userAgent, fallbackUserAgent))
	headers.Set("Accept", "*/*")
	headers.Set("Content-Type", "application/json")
}

func sanitizeUserAgent(candidate, fallback string) string {
	if isValidHeaderValue(candidate) {
		return candidate
	}
	sanitized := sanitizePrintableASCII(candidate)
	if sanitized != "" && isValidHeaderValue(sanitized) {
		return sanitized
	}
	return fallback
}

func sanitizePrintableASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= ' ' && r <= '~' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isValidHeaderValue(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if r < ' ' || r == 0x7f {
			return false
		}
	}
	return true
}
