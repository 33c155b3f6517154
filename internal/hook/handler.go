package hook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/config"
	"github.com/guntarion/convlog/internal/mdlog"
	"github.com/guntarion/convlog/internal/observability"
	"github.com/guntarion/convlog/internal/session"
	"github.com/guntarion/convlog/internal/transcript"
)

// LogWriter appends rendered blocks to a session's markdown log.
// *mdlog.Writer is the implementation used outside tests.
type LogWriter interface {
	Create(path string, startedAt time.Time) error
	AppendPrompt(path string, ts time.Time, text string) error
	AppendResponse(path string, ts time.Time, text string, t session.ResponseType) error
	AppendSubagent(path string, ts time.Time, agentType, description string, texts []string) error
	AppendSummary(path string, rec *session.Record, git collector.GitStatus) error
	AppendNote(path string, ts time.Time, text string, meta mdlog.NoteMeta) error
}

// Handler dispatches events to the session directory and markdown writer.
type Handler struct {
	Dir    *session.Directory
	Writer LogWriter
	Git    collector.Collector // nil disables git data in summaries
	// Action maps a hook event name to a config.Action* value.
	Action func(event string) string
	// Out receives the short human-readable status lines the runtime shows
	// for hooks (session started, session ended, ...).
	Out io.Writer
	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func (h *Handler) action(event string) string {
	if h.Action == nil {
		return config.Defaults().Action(event)
	}
	return h.Action(event)
}

func (h *Handler) printf(format string, args ...any) {
	if h.Out != nil {
		fmt.Fprintf(h.Out, format+"\n", args...)
	}
}

// Handle processes one event. Failures other than an unusable payload are
// logged and swallowed so the runtime is never blocked by logging.
func (h *Handler) Handle(ctx context.Context, ev *Event) error {
	if ev == nil {
		return fmt.Errorf("%w: empty event", ErrInvalidPayload)
	}
	ctx = observability.WithSessionID(ctx, ev.SessionID)
	log := observability.LoggerFromContext(ctx).With("event", ev.HookEventName)

	act := h.action(ev.HookEventName)
	if act == config.ActionNone {
		log.Debug("event not wired, ignoring")
		return nil
	}
	if ev.SessionID == "" {
		log.Warn("no session_id in payload, skipping")
		return nil
	}

	var err error
	switch act {
	case config.ActionStart:
		err = h.start(ctx, ev)
	case config.ActionPrompt:
		err = h.prompt(ctx, ev)
	case config.ActionStop:
		_, err = h.RecordAgentResponses(ctx, ev.SessionID, ev.TranscriptPath)
	case config.ActionSubagent:
		err = h.subagent(ctx, ev)
	case config.ActionEnd:
		err = h.end(ctx, ev)
	case config.ActionTrack:
		err = h.track(ctx, ev)
	default:
		log.Warn("unknown action configured for event", "action", act)
		return nil
	}
	if err != nil {
		logFailure(log, err)
	}
	return nil
}

func logFailure(log *slog.Logger, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		log.Warn("session not found, skipping", "err", err)
	case errors.Is(err, session.ErrLockTimeout):
		log.Warn("session busy, event dropped", "err", err)
	default:
		log.Warn("hook failed", "err", err)
	}
}

// EnsureSession returns the session record, creating it and its log header
// on first reference.
func (h *Handler) EnsureSession(id string) (*session.Record, bool, error) {
	return h.Dir.GetOrCreate(id, func(r *session.Record) error {
		err := h.Writer.Create(h.Dir.LogPath(r), r.StartTime)
		if errors.Is(err, mdlog.ErrExists) {
			return nil
		}
		return err
	})
}

func (h *Handler) start(ctx context.Context, ev *Event) error {
	rec, created, err := h.EnsureSession(ev.SessionID)
	if err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Info("session started",
		"created", created, "source", ev.Source, "log_file", rec.LogFile)
	h.printf("Session started: %s", ev.SessionID)
	return nil
}

func (h *Handler) prompt(ctx context.Context, ev *Event) error {
	if strings.TrimSpace(ev.Prompt) == "" {
		return nil
	}
	// The start event may have been missed; create lazily.
	if _, _, err := h.EnsureSession(ev.SessionID); err != nil {
		return err
	}
	return h.RecordPrompt(ev.SessionID, ev.Prompt)
}

// RecordPrompt appends a prompt block and records the prompt, atomically
// under the session lock.
func (h *Handler) RecordPrompt(id, text string) error {
	_, err := h.Dir.Update(id, func(r *session.Record) error {
		ts := h.now()
		if err := h.Writer.AppendPrompt(h.Dir.LogPath(r), ts, text); err != nil {
			return err
		}
		r.Prompts = append(r.Prompts, session.Prompt{Timestamp: ts, Content: text})
		return nil
	})
	return err
}

// RecordAgentResponses logs the agent responses in the transcript at path
// that the record has not seen yet, and returns how many were added.
func (h *Handler) RecordAgentResponses(ctx context.Context, id, path string) (int, error) {
	log := observability.LoggerFromContext(ctx)
	if path == "" {
		log.Warn("no transcript_path in payload, skipping")
		return 0, nil
	}
	if !h.Dir.Exists(id) {
		return 0, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}

	res := transcript.Read(path)
	for _, w := range res.Warnings {
		log.Warn("transcript", "detail", w)
	}

	added := 0
	var appendErr error
	_, err := h.Dir.Update(id, func(r *session.Record) error {
		fresh := transcript.NewResponses(res.Messages, r.CountResponses(session.ResponseAgent))
		logPath := h.Dir.LogPath(r)
		for _, text := range fresh {
			ts := h.now()
			// Blocks already in the log must be saved as recorded, or the
			// next pass would write them again.
			if appendErr = h.Writer.AppendResponse(logPath, ts, text, session.ResponseAgent); appendErr != nil {
				break
			}
			r.Responses = append(r.Responses, session.Response{Timestamp: ts, Content: text, Type: session.ResponseAgent})
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if added > 0 {
		log.Debug("recorded responses", "count", added)
	}
	return added, appendErr
}

func (h *Handler) subagent(ctx context.Context, ev *Event) error {
	log := observability.LoggerFromContext(ctx)
	path := ev.AgentTranscriptPath
	if path == "" {
		path = ev.TranscriptPath
	}
	if path == "" {
		log.Warn("no transcript path in sub-agent payload, skipping")
		return nil
	}
	if !h.Dir.Exists(ev.SessionID) {
		return fmt.Errorf("%w: %s", session.ErrNotFound, ev.SessionID)
	}

	res := transcript.Read(path)
	for _, w := range res.Warnings {
		log.Warn("transcript", "detail", w)
	}

	// Each sub-agent writes its own transcript, so progress is tracked per
	// file rather than across all sub-agent responses of the session.
	added := 0
	_, err := h.Dir.Update(ev.SessionID, func(r *session.Record) error {
		fresh := transcript.NewResponses(res.Messages, r.SubagentOffset(path))
		if len(fresh) == 0 {
			return nil
		}
		ts := h.now()
		if err := h.Writer.AppendSubagent(h.Dir.LogPath(r), ts, ev.SubagentType, ev.Description, fresh); err != nil {
			return err
		}
		for _, text := range fresh {
			r.Responses = append(r.Responses, session.Response{Timestamp: ts, Content: text, Type: session.ResponseSubagent})
		}
		r.AdvanceSubagent(path, len(fresh))
		added = len(fresh)
		return nil
	})
	if err != nil {
		return err
	}
	if added > 0 {
		agent := ev.SubagentType
		if agent == "" {
			agent = "unknown"
		}
		h.printf("Logged sub-agent (%s) activity to session %s", agent, ev.SessionID)
	}
	return nil
}

// Finalize closes the session. The summary footer is written only the first
// time; later calls just refresh end_time.
func (h *Handler) Finalize(ctx context.Context, id string) (*session.Record, error) {
	return h.Dir.Finalize(id, func(r *session.Record) error {
		return h.Writer.AppendSummary(h.Dir.LogPath(r), r, h.gitStatus(ctx, r))
	})
}

func (h *Handler) end(ctx context.Context, ev *Event) error {
	rec, err := h.Finalize(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	reason := ev.Reason
	if reason == "" {
		reason = "other"
	}
	h.printf("Session ended: %s (reason: %s)", ev.SessionID, reason)
	h.printf("  prompts: %d, responses: %d, files: %d, log: %s",
		len(rec.Prompts), len(rec.Responses), len(rec.FileChanges), rec.LogFile)
	return nil
}

func (h *Handler) track(ctx context.Context, ev *Event) error {
	p, ok := TrackedPath(ev.ToolName, ev.ToolInput)
	if !ok {
		return nil
	}
	if err := h.Dir.AddFileChange(ev.SessionID, p); err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Debug("tracked file", "tool", ev.ToolName, "path", p)
	return nil
}

// LogNote appends a manually submitted summary, attaching the session's
// tracked files and the current git state.
func (h *Handler) LogNote(ctx context.Context, id, text string) error {
	_, err := h.Dir.Update(id, func(r *session.Record) error {
		meta := mdlog.NoteMeta{
			FilesChanged: append([]string(nil), r.FileChanges...),
			Git:          h.gitStatus(ctx, r),
		}
		return h.Writer.AppendNote(h.Dir.LogPath(r), h.now(), text, meta)
	})
	return err
}

// gitStatus runs the git collector for r. Collection problems only cost the
// git section of the block being written.
func (h *Handler) gitStatus(ctx context.Context, r *session.Record) collector.GitStatus {
	if h.Git == nil {
		return collector.GitStatus{}
	}
	log := observability.LoggerFromContext(ctx)
	res, err := h.Git.Collect(ctx, r)
	if err != nil {
		log.Warn("git collector failed", "err", err)
		return collector.GitStatus{}
	}
	for _, w := range res.Warnings {
		log.Debug("git status unavailable", "reason", w)
	}
	return res.Git
}
