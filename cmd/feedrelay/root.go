package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/config"
	"github.com/ibeckermayer/feedrelay/internal/logging"
)

var (
	version   = "0.1.0"
	gitCommit = "unknown"
)

// cli holds state shared by all subcommands, filled in by the root's
// PersistentPreRunE.
type cli struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "feedrelay",
		Short: "Relay posts from the X.com feed as you scroll",
		Long: `feedrelay opens the X.com home feed in Chrome, extracts every post that
scrolls into view, and relays new ones every few seconds to a local HTTP
endpoint or a local SQLite database.

Log in by hand on the first run; the browser profile is kept between runs.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, gitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	rootCmd.SetVersionTemplate("feedrelay version {{.Version}}\n")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default is <user config dir>/feedrelay/config.toml)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file with FEEDRELAY_* overrides")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newToggleCmd(c),
		newStatusCmd(c),
		newOpenCmd(c),
		newBotTestCmd(c),
		newVersionCmd(),
	)

	return rootCmd
}

func (c *cli) init() error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", c.envFile, err)
		}
	}

	path := c.configPath
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}

	cfg, created, err := loadConfig(path)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if created {
		log.Info("created default config", zap.String("path", path))
	}

	c.cfg = cfg
	c.log = log
	return nil
}

// loadConfig reads path, writing the defaults there on first run.
func loadConfig(path string) (*config.Config, bool, error) {
	created := false
	cfg, err := config.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := config.Default().SaveFile(path); err != nil {
			return nil, false, fmt.Errorf("could not save default config: %w", err)
		}
		created = true
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, false, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, created, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedrelay version %s (commit: %s)\n", version, gitCommit)
		},
	}
}
