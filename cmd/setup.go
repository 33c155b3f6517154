package cmd

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/config"
	"github.com/guntarion/convlog/internal/install"
)

var (
	setupSettings string
	setupBinary   string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Register convlog hooks in the project's settings.json (safe to re-run)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()

		path := setupSettings
		if path == "" {
			path = filepath.Join(c.ProjectRoot, install.DefaultSettingsPath)
		}
		binary := setupBinary
		if binary == "" {
			binary = "convlog"
			if exe, err := os.Executable(); err == nil {
				binary = exe
			}
		}

		rep, err := install.Install(path, binary, wiredEvents(c))
		if err != nil {
			return err
		}
		if len(rep.Added) > 0 {
			cmd.Printf("  ✓ Added hooks for %s\n", strings.Join(rep.Added, ", "))
		}
		if len(rep.Present) > 0 {
			cmd.Printf("  Already installed: %s\n", strings.Join(rep.Present, ", "))
		}
		cmd.Printf("  Settings: %s\n", rep.Path)
		return nil
	},
}

// wiredEvents lists the stock events whose configured action does something.
func wiredEvents(c config.Config) []string {
	var events []string
	for name := range config.DefaultEvents() {
		if c.Action(name) != config.ActionNone {
			events = append(events, name)
		}
	}
	sort.Strings(events)
	return events
}

func init() {
	setupCmd.Flags().StringVar(&setupSettings, "settings", "", "settings file to edit (default: <project>/.claude/settings.json)")
	setupCmd.Flags().StringVar(&setupBinary, "binary", "", "command used in the hook entries (default: this executable)")
	rootCmd.AddCommand(setupCmd)
}
