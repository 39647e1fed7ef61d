package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/proxy"
	"github.com/n0madic/go-slaude/internal/scope"
)

const shutdownTimeout = 5 * time.Second

type ServeCommander struct {
	host           string
	port           int
	upstreamURL    string
	organization   string
	accessToken    string
	requestTimeout time.Duration
}

const serveLongDesc string = `Run the completion proxy.

The organization scope is resolved once at startup. If the upstream rejects
the session outright the command exits non-zero; network failures are logged
and requests receive 503 until the process is restarted.`

const serveShortDesc string = "Run the completion proxy"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cmder.apply(cmd, cfg); err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.host, "host", config.DefaultHost, "Bind host")
	cmd.Flags().IntVarP(&cmder.port, "port", "p", config.DefaultPort, "Listen port")
	cmd.Flags().StringVarP(&cmder.upstreamURL, "upstream", "u", config.DefaultUpstreamURL, "Upstream service base URL")
	cmd.Flags().StringVar(&cmder.organization, "organization", "", "Use this organization instead of resolving one")
	cmd.Flags().StringVar(&cmder.accessToken, "access-token", "", "Require this bearer token on /v1 routes")
	cmd.Flags().DurationVar(&cmder.requestTimeout, "request-timeout", config.DefaultRequestTimeout, "Per-request deadline")

	return cmd
}

// apply copies explicitly set flags over the loaded configuration.
func (c *ServeCommander) apply(cmd *cobra.Command, cfg *config.ServerConfig) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = c.host
	}
	if flags.Changed("port") {
		cfg.Port = c.port
	}
	if flags.Changed("upstream") {
		cfg.UpstreamURL = c.upstreamURL
	}
	if flags.Changed("organization") {
		cfg.Organization = c.organization
	}
	if flags.Changed("access-token") {
		cfg.AccessToken = c.accessToken
	}
	if flags.Changed("request-timeout") {
		cfg.RequestTimeout = c.requestTimeout
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

func (c *ServeCommander) run(ctx context.Context, cfg *config.ServerConfig) error {
	slog.SetDefault(newLogger(cfg))

	client := newUpstreamClient(cfg)
	var resolver *scope.Resolver
	if cfg.Organization != "" {
		slog.Info("scope.static", "organization", cfg.Organization)
		resolver = scope.Static(cfg.Organization)
	} else {
		resolver = scope.NewResolver(client, cfg.ResolveTimeout)
	}

	srv := proxy.New(cfg, client, resolver)

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	go func() {
		select {
		case <-resolver.Done():
		case <-ctx.Done():
			return
		}
		if err := resolver.Err(); errors.Is(err, scope.ErrResolution) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	return runErr
}
