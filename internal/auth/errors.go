package auth

import "errors"

var (
	ErrNoCredentials      = errors.New("no credentials found; set SLAUDE_SESSION_KEY or run 'login' first")
	ErrCredentialsExpired = errors.New("stored session credentials have expired; run 'login' again")
)
