package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/config"
	"github.com/guntarion/convlog/internal/hook"
	"github.com/guntarion/convlog/internal/mdlog"
	"github.com/guntarion/convlog/internal/observability"
	"github.com/guntarion/convlog/internal/session"
)

// cfg holds the resolved configuration, populated in PersistentPreRunE.
var cfg config.Config

var (
	projectFlag string
	configFlag  string
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:          "convlog",
	Short:        "Log assistant conversations to markdown, one session at a time",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := config.Options{ProjectRoot: projectFlag, GlobalFile: configFlag}
		loaded, err := config.Load(opts)
		if err != nil {
			var perr *config.ParseError
			// A broken config must not stop hooks from logging.
			if cmd.Name() != "hook" || !errors.As(err, &perr) {
				return fmt.Errorf("loading config: %w", err)
			}
			loaded = config.Fallback(opts)
			observability.Setup(cmd.ErrOrStderr(), debugFlag).Warn("using default configuration", "error", err)
		}
		cfg = loaded
		observability.Setup(cmd.ErrOrStderr(), debugFlag || cfg.Debug)
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the resolved configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// projectName is the configured name, or the base name of the project root.
func projectName(c config.Config) string {
	if c.ProjectName != "" {
		return c.ProjectName
	}
	return filepath.Base(c.ProjectRoot)
}

// openDirectory returns the session directory described by c.
func openDirectory(c config.Config) (*session.Directory, error) {
	dir, err := session.NewDirectory(c.ProjectRoot, c.BaseDir, c.SessionsPath())
	if err != nil {
		return nil, err
	}
	if c.LockTimeout > 0 {
		dir.Locks.Timeout = c.LockTimeout
	}
	return dir, nil
}

// newHandler wires a hook handler from the resolved configuration.
func newHandler(cmd *cobra.Command) (*hook.Handler, error) {
	dir, err := openDirectory(cfg)
	if err != nil {
		return nil, err
	}
	return &hook.Handler{
		Dir:    dir,
		Writer: &mdlog.Writer{Project: projectName(cfg)},
		Git:    &collector.GitCollector{WorkDir: cfg.ProjectRoot, Timeout: cfg.GitTimeout},
		Action: cfg.Action,
		Out:    cmd.ErrOrStderr(),
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "project root (default: $CLAUDE_PROJECT_DIR or the working directory)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "global config file (default: ~/.config/convlog/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}
