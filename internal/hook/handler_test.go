package hook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/hook"
	"github.com/guntarion/convlog/internal/mdlog"
	"github.com/guntarion/convlog/internal/session"
)

type fakeGit struct {
	status collector.GitStatus
	err    error
	calls  int
}

func (f *fakeGit) Collect(context.Context, *session.Record) (collector.Result, error) {
	f.calls++
	if f.err != nil {
		return collector.Result{}, f.err
	}
	return collector.Result{Git: f.status}, nil
}

// flakyWriter fails AppendResponse once okResponses calls have succeeded.
type flakyWriter struct {
	*mdlog.Writer
	okResponses int
	calls       int
}

func (w *flakyWriter) AppendResponse(path string, ts time.Time, text string, t session.ResponseType) error {
	w.calls++
	if w.calls > w.okResponses {
		return errors.New("no space left on device")
	}
	return w.Writer.AppendResponse(path, ts, text, t)
}

type fixture struct {
	root    string
	handler *hook.Handler
	git     *fakeGit
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dir, err := session.NewDirectory(root, "dev-logs", filepath.Join(root, ".claude", "data", "sessions"))
	require.NoError(t, err)
	git := &fakeGit{status: collector.GitStatus{Available: true, Status: "M a.py", DiffStat: "1 file changed"}}
	out := &bytes.Buffer{}
	return &fixture{
		root: root,
		git:  git,
		out:  out,
		handler: &hook.Handler{
			Dir:    dir,
			Writer: &mdlog.Writer{Project: "demo"},
			Git:    git,
			Out:    out,
		},
	}
}

func (f *fixture) fire(t *testing.T, ev hook.Event) {
	t.Helper()
	require.NoError(t, f.handler.Handle(context.Background(), &ev))
}

func (f *fixture) record(t *testing.T, id string) *session.Record {
	t.Helper()
	rec, err := f.handler.Dir.Load(id)
	require.NoError(t, err)
	return rec
}

func (f *fixture) markdown(t *testing.T, id string) string {
	t.Helper()
	data, err := os.ReadFile(f.handler.Dir.LogPath(f.record(t, id)))
	require.NoError(t, err)
	return string(data)
}

func assistantLine(text string) string {
	b, _ := json.Marshal(map[string]any{
		"type":    "assistant",
		"message": map[string]any{"role": "assistant", "content": []map[string]string{{"type": "text", "text": text}}},
	})
	return string(b)
}

func appendTranscript(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := fmt.Fprintln(f, l)
		require.NoError(t, err)
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := hook.ParseEvent([]byte(`{"session_id":"s1","hook_event_name":"Stop","transcript_path":"/t.jsonl"}`), "")
	require.NoError(t, err)
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, "Stop", ev.HookEventName)

	ev, err = hook.ParseEvent([]byte(`{"session_id":"s1","hook_event_name":"Stop"}`), "SessionEnd")
	require.NoError(t, err)
	assert.Equal(t, "SessionEnd", ev.HookEventName, "argument overrides payload")

	for _, bad := range []string{``, `   `, `not json`, `[1,2]`, `{"session_id":`, `{"session_id":"s1"}`} {
		_, err := hook.ParseEvent([]byte(bad), "")
		assert.ErrorIs(t, err, hook.ErrInvalidPayload, "payload %q", bad)
	}
}

func TestTrackedPath(t *testing.T) {
	cases := []struct {
		tool  string
		input string
		want  string
		ok    bool
	}{
		{"Edit", `{"file_path":"a.py"}`, "a.py", true},
		{"Write", `{"file_path":"b.go","content":"x"}`, "b.go", true},
		{"Read", `{"file_path":"c.md"}`, "c.md", true},
		{"MultiEdit", `{"file_path":"d.ts","edits":[]}`, "d.ts", true},
		{"NotebookEdit", `{"notebook_path":"n.ipynb"}`, "n.ipynb", true},
		{"Glob", `{"pattern":"**/*.go"}`, "glob:**/*.go", true},
		{"Glob", `{}`, "", false},
		{"Bash", `{"command":"ls"}`, "", false},
		{"Edit", `{}`, "", false},
		{"Edit", `not json`, "", false},
		{"Edit", ``, "", false},
	}
	for _, c := range cases {
		got, ok := hook.TrackedPath(c.tool, json.RawMessage(c.input))
		assert.Equal(t, c.ok, ok, "%s %s", c.tool, c.input)
		assert.Equal(t, c.want, got, "%s %s", c.tool, c.input)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	tr := filepath.Join(t.TempDir(), "transcript.jsonl")

	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "SessionStart", Source: "startup"})
	assert.Contains(t, f.markdown(t, "s1"), "# Conversation Log")
	assert.Contains(t, f.markdown(t, "s1"), "**Project:** demo")

	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "UserPromptSubmit", Prompt: "fix bug"})
	appendTranscript(t, tr, `{"type":"user","message":{"role":"user","content":"fix bug"}}`, assistantLine("looking"), assistantLine("done"))

	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "Stop", TranscriptPath: tr})
	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "Stop", TranscriptPath: tr})
	rec := f.record(t, "s1")
	require.Len(t, rec.Responses, 2, "re-running stop over the same transcript must not duplicate")
	assert.Equal(t, "looking", rec.Responses[0].Content)
	assert.Equal(t, "done", rec.Responses[1].Content)

	appendTranscript(t, tr, `{not json`, assistantLine("more"))
	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "Stop", TranscriptPath: tr})
	assert.Len(t, f.record(t, "s1").Responses, 3)

	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "PostToolUse", ToolName: "Edit", ToolInput: json.RawMessage(`{"file_path":"a.py"}`)})
	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "PostToolUse", ToolName: "Edit", ToolInput: json.RawMessage(`{"file_path":"a.py"}`)})
	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "PreToolUse", ToolName: "Edit", ToolInput: json.RawMessage(`{"file_path":"ignored.py"}`)})

	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "SessionEnd", Reason: "logout"})
	f.fire(t, hook.Event{SessionID: "s1", HookEventName: "SessionEnd"})

	rec = f.record(t, "s1")
	assert.True(t, rec.Finalized)
	assert.Equal(t, []string{"a.py"}, rec.FileChanges)
	require.Len(t, rec.Prompts, 1)
	assert.Equal(t, "fix bug", rec.Prompts[0].Content)

	md := f.markdown(t, "s1")
	assert.Equal(t, 1, strings.Count(md, "## Session Summary"), "summary footer must be written once")
	assert.Equal(t, 1, strings.Count(md, "\nlooking\n"))
	assert.Equal(t, 1, strings.Count(md, "User Prompt"))
	assert.Contains(t, md, "**Responses:** 3")
	assert.Contains(t, md, "- `a.py`")
	assert.Contains(t, md, "**Git Changes:** 1 file changed")
	assert.Equal(t, 1, f.git.calls)

	assert.Less(t, strings.Index(md, "User Prompt"), strings.Index(md, "looking"))
	assert.Less(t, strings.Index(md, "more"), strings.Index(md, "## Session Summary"))

	out := f.out.String()
	assert.Contains(t, out, "Session started: s1")
	assert.Contains(t, out, "Session ended: s1 (reason: logout)")
}

func TestPromptCreatesSessionLazily(t *testing.T) {
	f := newFixture(t)
	f.fire(t, hook.Event{SessionID: "late", HookEventName: "UserPromptSubmit", Prompt: "hello"})

	rec := f.record(t, "late")
	require.Len(t, rec.Prompts, 1)
	md := f.markdown(t, "late")
	assert.True(t, strings.HasPrefix(md, "# Conversation Log"))
	assert.Contains(t, md, "User Prompt\n\nhello\n")
}

func TestEmptyPromptIgnored(t *testing.T) {
	f := newFixture(t)
	f.fire(t, hook.Event{SessionID: "quiet", HookEventName: "UserPromptSubmit", Prompt: "  \n"})
	assert.False(t, f.handler.Dir.Exists("quiet"))
}

func TestEventsForUnknownSessionAreSkipped(t *testing.T) {
	f := newFixture(t)
	tr := filepath.Join(t.TempDir(), "t.jsonl")
	appendTranscript(t, tr, assistantLine("x"))

	f.fire(t, hook.Event{SessionID: "ghost", HookEventName: "Stop", TranscriptPath: tr})
	f.fire(t, hook.Event{SessionID: "ghost", HookEventName: "SubagentStop", TranscriptPath: tr})
	f.fire(t, hook.Event{SessionID: "ghost", HookEventName: "SessionEnd"})
	f.fire(t, hook.Event{SessionID: "ghost", HookEventName: "PostToolUse", ToolName: "Write", ToolInput: json.RawMessage(`{"file_path":"a"}`)})
	f.fire(t, hook.Event{HookEventName: "Stop", TranscriptPath: tr})

	assert.False(t, f.handler.Dir.Exists("ghost"))
}

func TestStopWithMissingTranscript(t *testing.T) {
	f := newFixture(t)
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "Stop", TranscriptPath: filepath.Join(t.TempDir(), "missing.jsonl")})
	assert.Empty(t, f.record(t, "s").Responses)
}

func TestSubagentStopCombinesNewTexts(t *testing.T) {
	f := newFixture(t)
	agentTr := filepath.Join(t.TempDir(), "agent.jsonl")
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})

	appendTranscript(t, agentTr, assistantLine("first"), assistantLine("second"))
	ev := hook.Event{SessionID: "s", HookEventName: "SubagentStop", AgentTranscriptPath: agentTr, TranscriptPath: "/unused", SubagentType: "Explore", Description: "map callers"}
	f.fire(t, ev)
	f.fire(t, ev)

	rec := f.record(t, "s")
	require.Len(t, rec.Responses, 2)
	for _, r := range rec.Responses {
		assert.Equal(t, session.ResponseSubagent, r.Type)
	}
	md := f.markdown(t, "s")
	assert.Equal(t, 1, strings.Count(md, "**Sub-Agent: Explore - map callers**"))
	assert.Contains(t, md, "**Response 2:**\nsecond")
	assert.Contains(t, f.out.String(), "Logged sub-agent (Explore) activity to session s")
}

func TestSubagentsWithSeparateTranscripts(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	explore := filepath.Join(dir, "agent-a.jsonl")
	plan := filepath.Join(dir, "agent-b.jsonl")
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})

	appendTranscript(t, explore, assistantLine("a1"), assistantLine("a2"))
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SubagentStop", AgentTranscriptPath: explore, SubagentType: "Explore"})

	// A later sub-agent with a shorter transcript of its own is still new.
	appendTranscript(t, plan, assistantLine("b1"))
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SubagentStop", AgentTranscriptPath: plan, SubagentType: "Plan"})

	// The first sub-agent resumes and writes one more text.
	appendTranscript(t, explore, assistantLine("a3"))
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SubagentStop", AgentTranscriptPath: explore, SubagentType: "Explore"})

	rec := f.record(t, "s")
	var texts []string
	for _, r := range rec.Responses {
		texts = append(texts, r.Content)
	}
	assert.Equal(t, []string{"a1", "a2", "b1", "a3"}, texts)
	assert.Equal(t, map[string]int{explore: 3, plan: 1}, rec.SubagentOffsets)

	md := f.markdown(t, "s")
	assert.Contains(t, md, "**Sub-Agent: Plan**")
	assert.Equal(t, 1, strings.Count(md, "a1"))
	assert.Equal(t, 1, strings.Count(md, "b1"))
}

func TestPartialAppendFailureIsNotRepeated(t *testing.T) {
	f := newFixture(t)
	writer := &flakyWriter{Writer: &mdlog.Writer{Project: "demo"}, okResponses: 1}
	f.handler.Writer = writer
	tr := filepath.Join(t.TempDir(), "t.jsonl")
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})
	appendTranscript(t, tr, assistantLine("t1"), assistantLine("t2"))

	added, err := f.handler.RecordAgentResponses(context.Background(), "s", tr)
	require.Error(t, err)
	assert.Equal(t, 1, added)
	require.Len(t, f.record(t, "s").Responses, 1, "the block that reached the log is recorded")

	writer.okResponses = 100
	added, err = f.handler.RecordAgentResponses(context.Background(), "s", tr)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	md := f.markdown(t, "s")
	assert.Equal(t, 1, strings.Count(md, "t1"))
	assert.Equal(t, 1, strings.Count(md, "t2"))
	assert.Len(t, f.record(t, "s").Responses, 2)
}

func TestFinalizeWithFailingGitCollector(t *testing.T) {
	f := newFixture(t)
	f.git.err = errors.New("collector exploded")
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionEnd"})

	rec := f.record(t, "s")
	assert.True(t, rec.Finalized)
	md := f.markdown(t, "s")
	assert.Contains(t, md, "## Session Summary")
	assert.NotContains(t, md, "1 file changed")
	assert.Equal(t, 1, f.git.calls)
}

func TestLateResponseAfterFinalize(t *testing.T) {
	f := newFixture(t)
	tr := filepath.Join(t.TempDir(), "t.jsonl")
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionEnd"})

	appendTranscript(t, tr, assistantLine("stray"))
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "Stop", TranscriptPath: tr})

	md := f.markdown(t, "s")
	assert.Contains(t, md, "stray")
	assert.Equal(t, 1, strings.Count(md, "## Session Summary"))
}

func TestCustomActionWiring(t *testing.T) {
	f := newFixture(t)
	f.handler.Action = func(event string) string {
		if event == "PreToolUse" {
			return "track"
		}
		return "bogus"
	}
	_, _, err := f.handler.EnsureSession("s")
	require.NoError(t, err)

	f.fire(t, hook.Event{SessionID: "s", HookEventName: "PreToolUse", ToolName: "Read", ToolInput: json.RawMessage(`{"file_path":"r.go"}`)})
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionEnd"})

	rec := f.record(t, "s")
	assert.Equal(t, []string{"r.go"}, rec.FileChanges)
	assert.False(t, rec.Finalized, "an unknown action must be ignored")
}

func TestHandleNilEvent(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.handler.Handle(context.Background(), nil), hook.ErrInvalidPayload)
}

func TestLogNoteIncludesMetadata(t *testing.T) {
	f := newFixture(t)
	f.fire(t, hook.Event{SessionID: "s", HookEventName: "SessionStart"})
	require.NoError(t, f.handler.Dir.AddFileChange("s", "x.go"))

	require.NoError(t, f.handler.LogNote(context.Background(), "s", "all done"))
	md := f.markdown(t, "s")
	assert.Contains(t, md, "Assistant Summary\n\nall done\n")
	assert.Contains(t, md, "- Files modified: x.go")
	assert.Contains(t, md, "- Git changes: 1 file changed")

	assert.ErrorIs(t, f.handler.LogNote(context.Background(), "nope", "x"), session.ErrNotFound)
}
