package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guntarion/convlog/internal/watch"
)

var watchTranscript string

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow a transcript and log new responses as they are written",
	Long: `Follow a transcript and log new responses as they are written.

Useful when Stop hooks are not wired. The session is created on first use and
watching continues until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHandler(cmd)
		if err != nil {
			return err
		}
		id := args[0]
		if _, _, err := h.EnsureSession(id); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		f := &watch.Follower{
			Recorder:  h,
			SessionID: id,
			Path:      watchTranscript,
			OnSync: func(added int, err error) {
				if err == nil && added > 0 {
					cmd.Printf("Logged %d response(s) to session %s\n", added, id)
				}
			},
		}
		cmd.Printf("Watching %s (Ctrl+C to stop)\n", watchTranscript)
		if err := f.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchTranscript, "transcript", "", "transcript JSONL file to follow")
	_ = watchCmd.MarkFlagRequired("transcript")
	rootCmd.AddCommand(watchCmd)
}
