// Package watch follows a transcript file and records new agent responses as
// the runtime writes them, for sessions where Stop hooks are not wired.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/guntarion/convlog/internal/observability"
)

// Recorder logs the responses in a transcript that a session has not seen yet.
type Recorder interface {
	RecordAgentResponses(ctx context.Context, id, path string) (int, error)
}

// DefaultDebounce coalesces bursts of writes into one pass over the transcript.
const DefaultDebounce = 200 * time.Millisecond

// Follower re-runs the agent-stop logic whenever the transcript changes.
type Follower struct {
	Recorder  Recorder
	SessionID string
	Path      string
	Debounce  time.Duration
	// OnSync, if set, is called after every pass with the number added.
	OnSync func(added int, err error)
}

// Run watches until ctx is cancelled. The transcript's directory is watched
// rather than the file so that a transcript created or replaced after
// startup is still picked up.
func (f *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(f.Path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	debounce := f.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := observability.LoggerFromContext(observability.WithSessionID(ctx, f.SessionID))

	// Catch up on anything written before the watch started.
	f.sync(ctx)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			f.sync(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
			log.Warn("transcript watcher", "err", err)
		}
	}
}

func (f *Follower) sync(ctx context.Context) {
	added, err := f.Recorder.RecordAgentResponses(ctx, f.SessionID, f.Path)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("recording responses failed", "session_id", f.SessionID, "err", err)
	}
	if f.OnSync != nil {
		f.OnSync(added, err)
	}
}
