package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/mdlog"
	"github.com/guntarion/convlog/internal/session"
	"github.com/guntarion/convlog/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <session-id>",
	Short: "Browse a session record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()
		dir, err := openDirectory(c)
		if err != nil {
			return err
		}
		rec, err := dir.Load(args[0])
		if err != nil {
			return err
		}

		// Fall back to plain text when stdout is piped.
		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		}
		return tui.Run(rec, c.ProjectRoot)
	},
}

// printRecord writes a plain-text summary of rec to w.
func printRecord(w io.Writer, rec *session.Record) {
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Session:   %s\n", rec.SessionID)
	fmt.Fprintf(w, "  Log file:  %s\n", rec.LogFile)
	fmt.Fprintf(w, "  Started:   %s\n", rec.StartTime.Local().Format("2006-01-02 15:04:05 MST"))
	if rec.EndTime != nil {
		fmt.Fprintf(w, "  Ended:     %s\n", rec.EndTime.Local().Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "  Duration:  %s\n", mdlog.FormatDuration(rec.EndTime.Sub(rec.StartTime)))
	}
	state := "active"
	if rec.Finalized {
		state = "finalized"
	}
	fmt.Fprintf(w, "  State:     %s\n", state)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Prompts")
	if len(rec.Prompts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, p := range rec.Prompts {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, p.Timestamp.Local().Format("15:04:05"), p.Content)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Responses")
	if len(rec.Responses) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, r := range rec.Responses {
		fmt.Fprintf(w, "  %d. [%s] (%s) %s\n", i+1, r.Timestamp.Local().Format("15:04:05"), r.Type, r.Content)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Files")
	if len(rec.FileChanges) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	files := append([]string(nil), rec.FileChanges...)
	sort.Strings(files)
	for _, f := range files {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
