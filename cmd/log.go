package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Append a message to an existing session log",
}

var logUserCmd = &cobra.Command{
	Use:   "user <session-id> <text...>",
	Short: "Log a user message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHandler(cmd)
		if err != nil {
			return err
		}
		id := args[0]
		if _, err := h.Dir.Load(id); err != nil {
			return err
		}
		if err := h.RecordPrompt(id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		cmd.Printf("Logged user message to session %s\n", id)
		return nil
	},
}

var logSummaryCmd = &cobra.Command{
	Use:   "summary <session-id> <text...>",
	Short: "Log an assistant summary with the session's files and git state",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHandler(cmd)
		if err != nil {
			return err
		}
		id := args[0]
		if err := h.LogNote(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		cmd.Printf("Logged summary to session %s\n", id)
		return nil
	},
}

func init() {
	logCmd.AddCommand(logUserCmd, logSummaryCmd)
	rootCmd.AddCommand(logCmd)
}
