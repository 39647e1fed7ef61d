package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/scope"
	"github.com/n0madic/go-slaude/internal/types"
)

func TestUnknownRoutesReturnNotFound(t *testing.T) {
	up := &fakeUpstream{}
	s := newTestServer(t, nil, up, scope.Static("org-1"))
	h := s.Handler()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/v1/complete"},
		{http.MethodPost, "/v1/chat/completions"},
		{http.MethodPut, "/v1/complete"},
		{http.MethodPost, "/nope"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Fatalf("status: got %d, want 404", w.Code)
			}
			env := decodeErrorEnvelope(t, w.Body.Bytes())
			if env.Error.Type != types.ErrorTypeNotFound {
				t.Errorf("error type: got %q", env.Error.Type)
			}
		})
	}
	if n := up.callCount(); n != 0 {
		t.Fatalf("unknown routes made %d upstream calls", n)
	}
}

func TestOptionsPreflight(t *testing.T) {
	s := newTestServer(t, nil, &fakeUpstream{}, scope.Static("org-1"))

	req := httptest.NewRequest(http.MethodOptions, "/v1/complete", nil)
	req.Header.Set("Access-Control-Request-Headers", "X-Custom")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin: got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "X-Custom" {
		t.Errorf("Allow-Headers: got %q", got)
	}
}

func TestHealthReportsScopeState(t *testing.T) {
	cases := []struct {
		name       string
		gate       ScopeGate
		wantStatus int
		wantScope  string
	}{
		{name: "resolved", gate: scope.Static("org-1"), wantStatus: http.StatusOK, wantScope: "resolved"},
		{name: "pending", gate: pendingGate{}, wantStatus: http.StatusOK, wantScope: "pending"},
		{name: "failed", gate: failedGate{}, wantStatus: http.StatusServiceUnavailable, wantScope: "failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, nil, &fakeUpstream{}, tc.gate)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status: got %d, want %d", w.Code, tc.wantStatus)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["scope"] != tc.wantScope {
				t.Errorf("scope: got %q, want %q", body["scope"], tc.wantScope)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, &fakeUpstream{}, scope.Static("org-1"))
	h := s.Handler()

	doComplete(t, h, `{"prompt":"hi","model":"claude-2"}`)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `slaude_requests_total{route="POST /v1/complete",status="2xx"}`) {
		t.Fatalf("expected completion request counter in:\n%s", w.Body.String())
	}
}

func TestAuthMiddlewareAccessTokenValidation(t *testing.T) {
	const okStatus = http.StatusTeapot

	cases := []struct {
		name           string
		method         string
		path           string
		accessToken    string
		headers        map[string]string
		wantStatusCode int
	}{
		{
			name:           "no configured access token bypasses middleware",
			method:         http.MethodPost,
			path:           "/v1/complete",
			wantStatusCode: okStatus,
		},
		{
			name:           "health endpoint bypasses middleware",
			method:         http.MethodGet,
			path:           "/health",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "metrics endpoint bypasses middleware",
			method:         http.MethodGet,
			path:           "/metrics",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "options requests bypass middleware",
			method:         http.MethodOptions,
			path:           "/v1/complete",
			accessToken:    "secret-token",
			wantStatusCode: okStatus,
		},
		{
			name:           "missing auth header returns unauthorized",
			method:         http.MethodPost,
			path:           "/v1/complete",
			accessToken:    "secret-token",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:        "wrong bearer token returns unauthorized",
			method:      http.MethodPost,
			path:        "/v1/complete",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Bearer wrong-token",
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:        "non bearer auth returns unauthorized",
			method:      http.MethodPost,
			path:        "/v1/complete",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Basic abc123",
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:        "matching bearer token passes",
			method:      http.MethodPost,
			path:        "/v1/complete",
			accessToken: "secret-token",
			headers: map[string]string{
				"Authorization": "Bearer secret-token",
			},
			wantStatusCode: okStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{Config: &config.ServerConfig{AccessToken: tc.accessToken}}
			handler := s.authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(okStatus)
			}))

			req := httptest.NewRequest(tc.method, tc.path, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tc.wantStatusCode {
				t.Fatalf("status: got %d, want %d body=%s", w.Code, tc.wantStatusCode, w.Body.String())
			}
			if tc.wantStatusCode == http.StatusUnauthorized {
				env := decodeErrorEnvelope(t, w.Body.Bytes())
				if env.Error.Type != types.ErrorTypeAuthentication || env.Error.Message != serverAccessTokenError {
					t.Fatalf("unexpected envelope: %+v", env)
				}
			}
		})
	}
}

func TestParseBearerAuthToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{name: "valid bearer token", header: "Bearer abc123", wantToken: "abc123", wantOK: true},
		{name: "valid bearer token with extra spaces", header: "  Bearer   abc123  ", wantToken: "abc123", wantOK: true},
		{name: "lowercase scheme", header: "bearer abc123"},
		{name: "missing token", header: "Bearer"},
		{name: "too many parts", header: "Bearer a b"},
		{name: "empty", header: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := parseBearerAuthToken(tt.header)
			if ok != tt.wantOK || token != tt.wantToken {
				t.Fatalf("got (%q, %v), want (%q, %v)", token, ok, tt.wantToken, tt.wantOK)
			}
		})
	}
}

func TestDebugMiddlewareDumpsRequestAndPreservesBody(t *testing.T) {
	originalLogger := slog.Default()
	var logs bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(originalLogger) })

	originalStderr := os.Stderr
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("create stderr pipe: %v", err)
	}
	os.Stderr = stderrW
	t.Cleanup(func() { os.Stderr = originalStderr })

	s := &Server{Config: &config.ServerConfig{Debug: true}}
	const payload = `{"prompt":"debug-body","model":"claude-2"}`

	handler := s.debugMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if string(body) != payload {
			t.Fatalf("body: got %q, want %q", string(body), payload)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/complete?trace=1", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusNoContent)
	}
	if err := stderrW.Close(); err != nil {
		t.Fatalf("close stderr writer: %v", err)
	}
	rawDump, err := io.ReadAll(stderrR)
	if err != nil {
		t.Fatalf("read stderr dump: %v", err)
	}
	if err := stderrR.Close(); err != nil {
		t.Fatalf("close stderr reader: %v", err)
	}

	if !strings.Contains(logs.String(), "request.dump") {
		t.Fatalf("expected request.dump log entry, got %q", logs.String())
	}
	rawDumpStr := string(rawDump)
	for _, want := range []string{
		"POST /v1/complete?trace=1 HTTP/1.1",
		"debug-body",
		"===== INBOUND REQUEST BEGIN =====",
		"===== INBOUND REQUEST END =====",
	} {
		if !strings.Contains(rawDumpStr, want) {
			t.Fatalf("expected %q in raw dump, got %q", want, rawDumpStr)
		}
	}
}

// pendingGate never settles.
type pendingGate struct{}

func (pendingGate) Start(context.Context) {}

func (pendingGate) Wait(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (pendingGate) State() scope.State { return scope.StatePending }

// failedGate reports a settled failure.
type failedGate struct{}

func (failedGate) Start(context.Context) {}

func (failedGate) Wait(context.Context) (string, error) {
	return "", scope.ErrResolution
}

func (failedGate) State() scope.State { return scope.StateFailed }
