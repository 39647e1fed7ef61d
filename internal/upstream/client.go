package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/n0madic/go-slaude/internal/auth"
	"github.com/n0madic/go-slaude/internal/codec"
	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/metrics"
	"github.com/n0madic/go-slaude/internal/types"
)

// upstreamHTTPTimeout caps a single upstream call. Completions stream for a
// long time, so it matches the default inbound request timeout.
const upstreamHTTPTimeout = 5 * time.Minute

// Reply is the raw result of an append_message call.
type Reply struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client makes requests to the upstream chat service. It is safe for
// concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     oauth2.TokenSource
	UserAgent  string
	Verbose    bool
	Debug      bool
	// DumpWriter receives debug dumps; nil means os.Stderr.
	DumpWriter io.Writer

	dumpMu sync.Mutex
}

// NewClient creates a new upstream client.
func NewClient(baseURL string, tokens oauth2.TokenSource, userAgent string, verbose, debug bool) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: upstreamHTTPTimeout},
		Tokens:     tokens,
		UserAgent:  userAgent,
		Verbose:    verbose,
		Debug:      debug,
	}
}

// NormalizeModel maps a caller-facing model name to the upstream naming
// scheme by removing every literal "v".
func NormalizeModel(model string) string {
	return strings.ReplaceAll(model, "v", "")
}

// ListOrganizations returns the organizations visible to the session.
func (c *Client) ListOrganizations(ctx context.Context) ([]types.Organization, error) {
	res, err := c.do(ctx, metrics.CallOrganizations, http.MethodGet, "/api/organizations", nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 || codec.HasErrorField(res.Body) {
		return nil, res.asError(metrics.CallOrganizations)
	}
	var orgs []types.Organization
	if err := json.Unmarshal(res.Body, &orgs); err != nil {
		return nil, fmt.Errorf("parsing organizations response: %w", err)
	}
	return orgs, nil
}

// CreateConversation opens a conversation named "" under scope. The response
// body is only logged.
func (c *Client) CreateConversation(ctx context.Context, scope, conversationID string) error {
	if scope == "" {
		return ErrMissingScope
	}
	path := "/api/organizations/" + url.PathEscape(scope) + "/chat_conversations"
	payload := types.CreateConversationPayload{UUID: conversationID, Name: ""}

	res, err := c.do(ctx, metrics.CallConversation, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	slog.Debug("upstream.conversation.created",
		"conversation_id", conversationID,
		"status", res.StatusCode,
		"body", preview(res.Body, 512),
	)
	if res.StatusCode >= 400 {
		return res.asError(metrics.CallConversation)
	}
	return nil
}

// AppendMessage submits prompt to the conversation and returns the complete
// upstream reply, every chunk concatenated in arrival order.
func (c *Client) AppendMessage(ctx context.Context, scope, conversationID, prompt, model string) (*Reply, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}
	upstreamModel := NormalizeModel(model)
	payload := types.NewAppendMessagePayload(scope, conversationID, prompt, upstreamModel)

	if c.Verbose {
		slog.Info("upstream.append_message",
			"conversation_id", conversationID,
			"model", model,
			"upstream_model", upstreamModel,
			"prompt_chars", len(prompt),
		)
	}

	res, err := c.do(ctx, metrics.CallAppendMessage, http.MethodPost, "/api/append_message", payload)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, res.asError(metrics.CallAppendMessage)
	}
	return &Reply{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        res.Body,
	}, nil
}

type result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *result) asError(call string) *UpstreamError {
	return &UpstreamError{Call: call, StatusCode: r.StatusCode, Body: r.Body, Headers: r.Header}
}

// do performs one upstream call and reads the whole response body.
func (c *Client) do(ctx context.Context, call, method, path string, payload any) (*result, error) {
	tok, err := c.Tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("loading session credentials: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", call, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	config.ApplyDefaultHeaders(httpReq.Header, c.UserAgent)
	auth.ApplyCookie(httpReq.Header, tok)
	c.dumpUpstreamRequest(httpReq)

	if c.Verbose {
		slog.Info("upstream.request", "call", call, "method", method, "path", path)
	}

	started := time.Now()
	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(call, metrics.OutcomeTransport, started)
		return nil, &TransportError{Call: call, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(call, metrics.OutcomeTransport, started)
		return nil, &TransportError{Call: call, Err: err}
	}

	outcome := metrics.OutcomeOK
	if resp.StatusCode >= 400 {
		outcome = metrics.OutcomeHTTPError
	}
	metrics.ObserveUpstream(call, outcome, started)

	if c.Verbose {
		attrs := []any{"call", call, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(started)}
		if requestID := codec.UpstreamRequestID(resp.Header); requestID != "" {
			attrs = append(attrs, "request_id", requestID)
		}
		slog.Info("upstream.response", attrs...)
	}
	c.dumpUpstreamResponse(resp, data)

	return &result{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) dumpWriter() io.Writer {
	if c.DumpWriter != nil {
		return c.DumpWriter
	}
	return os.Stderr
}

func preview(data []byte, maxLen int) string {
	s := strings.TrimSpace(string(data))
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
