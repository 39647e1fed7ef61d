// Package cli wires the slaude commands.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/n0madic/go-slaude/internal/auth"
	"github.com/n0madic/go-slaude/internal/config"
	"github.com/n0madic/go-slaude/internal/logger"
	"github.com/n0madic/go-slaude/internal/upstream"
)

const rootLongDesc string = `slaude exposes a local completion endpoint backed by a chat
session on the upstream service.

  slaude login --session-key ...   Store the session credential
  slaude serve                     Run the proxy on http://127.0.0.1:5004/v1
  slaude orgs                      List organizations visible to the session`

const rootShortDesc string = "slaude - local completion proxy"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "slaude",
		Short:        rootShortDesc,
		Long:         rootLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file (default: $SLAUDE_CONFIG or ./slaude.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging and HTTP dumps")
	cmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")
	cmd.PersistentFlags().Bool("pretty", false, "Colorized human-friendly logs")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewOrgsCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig resolves the effective configuration: defaults, file, env, then
// global flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not get config flag: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	boolFlags := []struct {
		name string
		dst  *bool
	}{
		{"verbose", &cfg.Verbose},
		{"debug", &cfg.Debug},
		{"log-json", &cfg.LogJSON},
		{"pretty", &cfg.Pretty},
	}
	for _, f := range boolFlags {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetBool(f.name); err != nil {
			return nil, fmt.Errorf("could not get %s flag: %w", f.name, err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	return logger.New(
		logger.WithDebug(cfg.Debug),
		logger.WithJSON(cfg.LogJSON),
		logger.WithPretty(cfg.Pretty),
	)
}

// newTokenSource prefers inline credentials from config or env over the
// stored credentials file.
func newTokenSource(cfg *config.ServerConfig) oauth2.TokenSource {
	var static *auth.Credentials
	if cfg.SessionKey != "" || cfg.Cookie != "" {
		static = &auth.Credentials{SessionKey: cfg.SessionKey, Cookie: cfg.Cookie}
	}
	return auth.NewTokenSource(static, auth.DefaultCredentialsPath())
}

func newUpstreamClient(cfg *config.ServerConfig) *upstream.Client {
	ua := config.PickUserAgent(cfg.UserAgentPool(), nil)
	return upstream.NewClient(cfg.UpstreamURL, newTokenSource(cfg), ua, cfg.Verbose, cfg.Debug)
}
