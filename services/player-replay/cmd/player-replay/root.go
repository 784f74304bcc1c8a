package main

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/platform/config"
	"github.com/example/watch-progress/internal/platform/logging"
	"github.com/example/watch-progress/internal/syncclient"
)

// cliOptions holds the persistent flags shared by every subcommand.
type cliOptions struct {
	server   string
	token    string
	secret   string
	subject  string
	logLevel string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "player-replay",
		Short:         "Replay recorded player events through the watch-progress tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", config.String("PROGRESS_URL", "http://localhost:8080"), "Progress service base URL")
	flags.StringVar(&opts.token, "token", config.String("PROGRESS_TOKEN", ""), "Bearer token for the progress service")
	flags.StringVar(&opts.secret, "secret", config.String("JWT_SECRET", ""), "HS256 secret used to mint a token when --token is empty")
	flags.StringVar(&opts.subject, "subject", "replay-user", "Subject (user id) for minted tokens")
	flags.StringVar(&opts.logLevel, "log-level", config.String("LOG_LEVEL", "warn"), "Log level written to stderr")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newGetCommand(opts))
	rootCmd.AddCommand(newTokenCommand(opts))
	rootCmd.AddCommand(newMergeCommand())

	return rootCmd
}

func (o *cliOptions) logger() (*zap.Logger, error) {
	return logging.New(o.logLevel, "player-replay")
}

func (o *cliOptions) tokenSource() (syncclient.TokenSource, error) {
	if tok := strings.TrimSpace(o.token); tok != "" {
		return syncclient.StaticToken(tok), nil
	}
	if o.secret == "" {
		return nil, errors.New("either --token or --secret is required")
	}
	tok, err := auth.Issue([]byte(o.secret), o.subject, time.Hour)
	if err != nil {
		return nil, err
	}
	return syncclient.StaticToken(tok), nil
}
