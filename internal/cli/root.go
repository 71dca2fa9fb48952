package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/packsmith/launcher/internal/bus"
	"github.com/packsmith/launcher/internal/factory"
	"github.com/packsmith/launcher/internal/identity/legacy"
	"github.com/packsmith/launcher/internal/identity/modern"
	"github.com/packsmith/launcher/internal/roster/redisstore"
)

var (
	cfg    *Config
	app    *factory.App
	ui     *termView
	dirty  atomic.Bool
	busSub bus.Token
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "launcher",
		Short: "Manage launcher accounts",
		Long: `launcher manages the accounts used to sign in to game services.

It keeps a roster of legacy (username/password) and modern (browser OAuth)
accounts, handles token refresh, and tracks which account is selected.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.RosterPath, "roster", cfg.RosterPath, "Accounts file path (env: LAUNCHER_ROSTER)")
	rootCmd.PersistentFlags().StringVar(&cfg.StorageType, "storage", cfg.StorageType, "Roster storage: file, redis (env: LAUNCHER_STORAGE)")
	rootCmd.PersistentFlags().StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL (env: LAUNCHER_REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&cfg.LegacyURL, "legacy-url", cfg.LegacyURL, "Legacy auth server URL (env: LAUNCHER_LEGACY_URL)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Yes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newReloginCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newRevalidateCmd())
	rootCmd.AddCommand(newUpdateNameCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newSelectCmd())

	return rootCmd
}

// setup wires the application and loads the roster, offering to quarantine
// a corrupted accounts file.
func setup() error {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ui = newTermView()

	factoryCfg := factory.Config{
		RosterPath:  cfg.RosterPath,
		StorageType: cfg.StorageType,
		LegacyConfig: legacy.Config{
			BaseURL: cfg.LegacyURL,
		},
		ModernConfig: modern.Config{
			ClientID:     cfg.OAuthClientID,
			AuthURL:      cfg.OAuthAuthURL,
			TokenURL:     cfg.OAuthTokenURL,
			ProfileURL:   cfg.OAuthProfileURL,
			CallbackPort: cfg.CallbackPort,
		},
		View:   ui,
		Logger: logger,
	}
	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstore.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	a, err := factory.New(factoryCfg)
	if err != nil {
		if a != nil && factory.IsRosterFormatError(err) {
			if quarantineErr := offerQuarantine(a, err); quarantineErr != nil {
				a.Shutdown()
				return quarantineErr
			}
		} else {
			return err
		}
	}
	app = a

	// Any roster change marks the listing stale so commands can re-print it
	busSub = app.Bus.Subscribe(func() {
		dirty.Store(true)
	})

	return nil
}

// offerQuarantine asks to move a corrupted accounts file aside and start
// with an empty roster
func offerQuarantine(a *factory.App, loadErr error) error {
	q, ok := a.Backend.(interface{ Quarantine() (string, error) })
	if !ok {
		return loadErr
	}

	confirmed := cfg.Yes
	if !confirmed {
		if err := survey.AskOne(&survey.Confirm{
			Message: "The accounts file could not be read. Move it aside and start fresh?",
			Default: false,
		}, &confirmed); err != nil {
			return err
		}
	}
	if !confirmed {
		return loadErr
	}

	moved, err := q.Quarantine()
	if err != nil {
		return err
	}
	fmt.Printf("Moved the unreadable accounts file to %s\n", moved)
	return a.Store.Load(context.Background())
}

// Execute runs the root command
func Execute() {
	err := NewRootCmd().Execute()
	if app != nil {
		app.Bus.Unsubscribe(busSub)
		app.Shutdown()
	}
	if err != nil {
		os.Exit(1)
	}
}
