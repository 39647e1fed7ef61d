package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/n0madic/go-slaude/internal/auth"
)

type LoginCommander struct {
	sessionKey string
	cookie     string
	ttl        time.Duration
}

func NewLoginCmd() *cobra.Command {
	cmder := &LoginCommander{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the session credential",
		Long: `Stores the session credential in $SLAUDE_HOME/credentials.json (0600).

When --session-key is omitted the key is read from stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.sessionKey, "session-key", "", "Session key value")
	cmd.Flags().StringVar(&cmder.cookie, "cookie", "", "Additional cookie pairs sent with every request")
	cmd.Flags().DurationVar(&cmder.ttl, "ttl", 0, "Treat the credential as expired after this long (0 = never)")

	return cmd
}

func (c *LoginCommander) run(cmd *cobra.Command) error {
	key := strings.TrimSpace(c.sessionKey)
	if key == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Session key: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading session key: %w", err)
		}
		key = strings.TrimSpace(line)
	}

	creds := &auth.Credentials{
		SessionKey: key,
		Cookie:     strings.TrimSpace(c.cookie),
		SavedAt:    auth.NowISO8601(),
	}
	if creds.EffectiveSessionKey() == "" {
		return errors.New("a session key is required")
	}
	if c.ttl > 0 {
		creds.ExpiresAt = time.Now().UTC().Add(c.ttl).Format(time.RFC3339)
	}

	if err := auth.WriteCredentialsFile(creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", auth.DefaultCredentialsPath())
	return nil
}
