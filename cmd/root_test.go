package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// runIn executes rootCmd against an isolated project root. Flags persist
// between executions of the package-level command, so the root and global
// config are always passed explicitly.
func runIn(t *testing.T, project string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CLAUDE_PROJECT_DIR", "")
	full := append([]string{
		"--project", project,
		"--config", filepath.Join(project, "no-global.yaml"),
	}, args...)
	return executeCommand(rootCmd, full...)
}

// hookIn feeds payload to `convlog hook` on stdin.
func hookIn(t *testing.T, project, payload string, args ...string) (string, error) {
	t.Helper()
	rootCmd.SetIn(strings.NewReader(payload))
	defer rootCmd.SetIn(nil)
	return runIn(t, project, append([]string{"hook"}, args...)...)
}
