package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/n0madic/go-slaude/internal/auth"
	"github.com/n0madic/go-slaude/internal/codec"
	"github.com/n0madic/go-slaude/internal/types"
	"github.com/n0madic/go-slaude/internal/upstream"
)

// maxBodyBytes limits the size of incoming request bodies to prevent memory exhaustion.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// handleComplete turns one inbound completion into a conversation: wait for
// the scope, create the conversation, submit the prompt, relay the reply.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	timeout := s.requestTimeout()
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		codec.WriteError(w, http.StatusBadRequest, types.ErrorTypeInvalidRequest, "failed to read request body")
		return
	}

	req, err := types.ParseCompletionRequest(body)
	if err != nil {
		codec.WriteError(w, http.StatusBadRequest, types.ErrorTypeInvalidRequest, err.Error())
		return
	}

	scopeID, err := s.Scope.Wait(ctx)
	if err != nil {
		codec.WriteError(w, http.StatusServiceUnavailable, types.ErrorTypeUnavailable,
			"organization scope unavailable: "+err.Error())
		return
	}

	conversationID := uuid.New().String()
	started := time.Now()
	if s.Config != nil && s.Config.Verbose {
		slog.Info("complete.request",
			"conversation_id", conversationID,
			"model", req.Model,
			"prompt_chars", len(req.Prompt),
		)
	}

	if err := s.upstreamClient.CreateConversation(ctx, scopeID, conversationID); err != nil {
		s.writeUpstreamFailure(ctx, w, "conversation initiation failed", timeout, err)
		return
	}

	reply, err := s.upstreamClient.AppendMessage(ctx, scopeID, conversationID, req.Prompt, req.Model)
	if err != nil {
		s.writeUpstreamFailure(ctx, w, "message submission failed", timeout, err)
		return
	}

	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply.Body); err != nil {
		slog.Warn("complete.write.failed", "conversation_id", conversationID, "error", err)
		return
	}

	slog.Debug("complete.done",
		"conversation_id", conversationID,
		"bytes", len(reply.Body),
		"duration", time.Since(started),
	)
}

// writeUpstreamFailure maps an upstream call failure to the inbound status:
// deadline 504, everything else 502.
func (s *Server) writeUpstreamFailure(ctx context.Context, w http.ResponseWriter, stage string, timeout time.Duration, err error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		codec.WriteError(w, http.StatusGatewayTimeout, types.ErrorTypeTimeout,
			fmt.Sprintf("%s: request timed out after %s", stage, timeout))
		return
	}

	var upErr *upstream.UpstreamError
	switch {
	case errors.As(err, &upErr):
		codec.WriteError(w, http.StatusBadGateway, types.ErrorTypeUpstream,
			stage+": "+codec.FormatUpstreamErrorWithHeaders(upErr.StatusCode, upErr.Body, upErr.Headers))
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrCredentialsExpired):
		codec.WriteError(w, http.StatusBadGateway, types.ErrorTypeAuthentication, stage+": "+err.Error())
	default:
		codec.WriteError(w, http.StatusBadGateway, types.ErrorTypeUpstream, stage+": "+err.Error())
	}
}
