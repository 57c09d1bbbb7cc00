package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sobre/internal/app"
	"sobre/internal/domain"
)

var (
	home       string
	self       string
	passphrase string
	backendURL string
	relayWSURL string
	token      string
	fallback   bool
	verbose    bool

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:   "sobre",
		Short: "End-to-end encrypted two-party chat",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if self == "" {
				return fmt.Errorf("identity required (--self)")
			}
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".sobre")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()

			wire = app.NewWire(app.Config{
				Home:                 home,
				Self:                 domain.Identity(self),
				Passphrase:           passphrase,
				BackendURL:           backendURL,
				RelayWSURL:           relayWSURL,
				Token:                token,
				AllowSelfKeyFallback: fallback,
				Logger:               logger,
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.sobre)")
	root.PersistentFlags().StringVar(&self, "self", "", "your identity, e.g. alice@example.com")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the key pair at rest")
	root.PersistentFlags().StringVar(&backendURL, "backend", "http://127.0.0.1:8080", "backend base URL")
	root.PersistentFlags().StringVar(&relayWSURL, "relay", "ws://127.0.0.1:8080/ws", "relay websocket URL")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer credential from the identity provider")
	root.PersistentFlags().BoolVar(&fallback, "insecure-self-key-fallback", false,
		"encrypt with your own key when the peer's key is missing (peer cannot read such messages)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(initCmd(), fingerprintCmd(), registerCmd(), contactsCmd(), historyCmd(), sendCmd(), chatCmd())
	return root.Execute()
}
