package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/observability"
)

// sessionStatus is the JSON document printed by `convlog status`.
type sessionStatus struct {
	SessionID      string    `json:"session_id"`
	SessionFile    string    `json:"session_file"`
	SessionStart   time.Time `json:"session_start"`
	Finalized      bool      `json:"finalized"`
	FilesModified  []string  `json:"files_modified"`
	PromptsCount   int       `json:"prompts_count"`
	ResponsesCount int       `json:"responses_count"`
	GitStatus      *string   `json:"git_status"`
	GitDiff        *string   `json:"git_diff"`
}

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Print a session's statistics as JSON",
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

		st := sessionStatus{
			SessionID:      rec.SessionID,
			SessionFile:    rec.LogFile,
			SessionStart:   rec.StartTime,
			Finalized:      rec.Finalized,
			FilesModified:  rec.FileChanges,
			PromptsCount:   len(rec.Prompts),
			ResponsesCount: len(rec.Responses),
		}
		var gc collector.Collector = &collector.GitCollector{WorkDir: c.ProjectRoot, Timeout: c.GitTimeout}
		res, err := gc.Collect(cmd.Context(), rec)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			observability.Logger().Debug("git status unavailable", "reason", w)
		}
		git := res.Git
		if git.Status != "" {
			st.GitStatus = &git.Status
		}
		if git.DiffStat != "" {
			st.GitDiff = &git.DiffStat
		}

		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
