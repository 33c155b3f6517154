package cmd

import (
	"github.com/spf13/cobra"
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize <session-id>",
	Short: "Write the session summary footer and mark the session ended",
	Long: `Write the session summary footer and mark the session ended.

Finalizing twice is safe: the footer is written once, later calls only move
the recorded end time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHandler(cmd)
		if err != nil {
			return err
		}
		rec, err := h.Finalize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Printf("Finalized session in %s\n", rec.LogFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(finalizeCmd)
}
