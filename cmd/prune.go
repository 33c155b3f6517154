package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var pruneDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete session records not updated within the retention window",
	Long: `Delete session records not updated within the retention window.

Only the JSON records are removed. Markdown logs are never touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetConfig()
		days := c.RetentionDays
		if cmd.Flags().Changed("days") {
			days = pruneDays
		}
		dir, err := openDirectory(c)
		if err != nil {
			return err
		}
		n, err := dir.Prune(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return err
		}
		cmd.Printf("Pruned %d session record(s) older than %d day(s)\n", n, days)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 30, "retention in days (default: retention_days from config)")
	rootCmd.AddCommand(pruneCmd)
}
