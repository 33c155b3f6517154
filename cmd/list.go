package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/session"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := openDirectory(GetConfig())
		if err != nil {
			return err
		}
		entries, err := dir.Store.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			cmd.Println("No sessions recorded.")
			return nil
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			rec, err := dir.Load(e.ID)
			if err != nil {
				var perr *session.ParseError
				if errors.As(err, &perr) {
					fmt.Fprintf(out, "%s  (unreadable record)\n", e.ID)
					continue
				}
				return err
			}
			state := "active"
			if rec.Finalized {
				state = "finalized"
			}
			fmt.Fprintf(out, "%s  %s  %-9s  prompts=%d responses=%d files=%d  %s\n",
				rec.SessionID,
				rec.StartTime.Local().Format("2006-01-02 15:04:05"),
				state,
				len(rec.Prompts), len(rec.Responses), len(rec.FileChanges),
				rec.LogFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
