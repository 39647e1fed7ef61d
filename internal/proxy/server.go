package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/n0madic/go-slaude/internal/codec"
	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/metrics"
	"github.com/n0madic/go-slaude/internal/scope"
	"github.com/n0madic/go-slaude/internal/types"
	"github.com/n0madic/go-slaude/internal/upstream"
)

// ConversationClient abstracts the upstream conversation calls so the
// handlers can be tested without a network connection.
type ConversationClient interface {
	CreateConversation(ctx context.Context, scope, conversationID string) error
	AppendMessage(ctx context.Context, scope, conversationID, prompt, model string) (*upstream.Reply, error)
}

// ScopeGate is the readiness gate requests wait on before talking upstream.
type ScopeGate interface {
	Start(ctx context.Context)
	Wait(ctx context.Context) (string, error)
	State() scope.State
}

// Server is the main proxy HTTP server.
type Server struct {
	Config         *config.ServerConfig
	httpServer     *http.Server
	upstreamClient ConversationClient
	Scope          ScopeGate
	debugDumpMu    sync.Mutex
	cancelBg       context.CancelFunc
}

const serverAccessTokenError = "Invalid or missing server access token"

// New creates a new proxy server with all routes registered. Scope
// resolution starts in the background immediately.
func New(cfg *config.ServerConfig, uc ConversationClient, gate ScopeGate) *Server {
	s := &Server{
		Config:         cfg,
		upstreamClient: uc,
		Scope:          gate,
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel
	gate.Start(bgCtx)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.Handler(),
		// ReadTimeout covers only reading the request body.
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must outlast the per-request deadline so the handler,
		// not the server, decides when a slow completion is abandoned.
		WriteTimeout: cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/complete", s.handleComplete)

	// Everything else, including known paths with the wrong method.
	mux.HandleFunc("/", s.handleNotFound)

	return metrics.Middleware(s.corsMiddleware(s.authMiddleware(s.verboseMiddleware(s.debugMiddleware(mux)))))
}

// ListenAndServe starts the proxy server.
func (s *Server) ListenAndServe() error {
	slog.Info("server.listening", "url", "http://"+s.httpServer.Addr+"/v1")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBg != nil {
		s.cancelBg()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.Scope.State()
	status := http.StatusOK
	health := "ok"
	switch state {
	case scope.StatePending:
		health = "starting"
	case scope.StateFailed:
		health = "degraded"
		status = http.StatusServiceUnavailable
	}
	codec.WriteJSON(w, status, map[string]string{
		"status": health,
		"scope":  state.String(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	codec.WriteError(w, http.StatusNotFound, types.ErrorTypeNotFound, "no route for "+r.Method+" "+r.URL.Path)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config == nil || s.Config.RequestTimeout <= 0 {
		return config.DefaultRequestTimeout
	}
	return s.Config.RequestTimeout
}
