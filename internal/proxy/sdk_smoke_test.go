package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/scope"
)

func newSDKSmokeHTTPServer(t *testing.T, up *fakeUpstream) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.AccessToken = "test-key"
	s := newTestServer(t, &cfg, up, scope.Static("org-1"))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func newSDKClient(baseURL string) openai.Client {
	return openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
}

func TestSDKSmokeComplete(t *testing.T) {
	up := &fakeUpstream{}
	srv := newSDKSmokeHTTPServer(t, up)
	client := newSDKClient(srv.URL + "/v1/")

	var resp *http.Response
	err := client.Post(context.Background(), "complete", map[string]any{
		"prompt": "hello from sdk",
		"model":  "claude-v2",
	}, &resp)
	if err != nil {
		t.Fatalf("sdk request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "data: ok\n\n" {
		t.Fatalf("body: got %q", body)
	}
	if len(up.appends) != 1 || up.appends[0].prompt != "hello from sdk" {
		t.Fatalf("unexpected appends: %+v", up.appends)
	}
}

func TestSDKSmokeMalformedRequest(t *testing.T) {
	up := &fakeUpstream{}
	srv := newSDKSmokeHTTPServer(t, up)
	client := newSDKClient(srv.URL + "/v1/")

	var resp *http.Response
	err := client.Post(context.Background(), "complete", map[string]any{"prompt": "hi"}, &resp)

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *openai.Error, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", apiErr.StatusCode)
	}
	if n := up.callCount(); n != 0 {
		t.Fatalf("expected no upstream calls, got %d", n)
	}
}
