package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/hook"
	"github.com/guntarion/convlog/internal/observability"
)

var hookCmd = &cobra.Command{
	Use:   "hook [event]",
	Short: "Handle one hook event read as JSON from stdin",
	Long: `Handle one hook event read as JSON from stdin.

The event name is taken from the argument when given, otherwise from the
payload's hook_event_name. Only an unreadable payload makes the command fail;
every other problem is logged to stderr and the command exits 0 so the
assistant is never blocked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("%w: reading stdin: %v", hook.ErrInvalidPayload, err)
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		ev, err := hook.ParseEvent(data, name)
		if err != nil {
			return err
		}

		h, err := newHandler(cmd)
		if err != nil {
			observability.Logger().Warn("cannot open session directory", "err", err)
			return nil
		}
		return h.Handle(cmd.Context(), ev)
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}
