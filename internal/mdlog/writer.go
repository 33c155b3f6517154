// Package mdlog writes the per-session markdown conversation log. The log is
// append-only: after the header is created, every block is a single O_APPEND
// write and prior bytes are never rewritten.
package mdlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/session"
)

// ErrExists is returned by Create when the log file is already present.
var ErrExists = errors.New("conversation log already exists")

// Writer renders session events and appends them to markdown logs.
type Writer struct {
	// Project is shown in the header; empty omits the line.
	Project string
}

// Create writes the header block to a new or empty log at path. It never
// truncates: a file that already has content yields ErrExists.
func (w *Writer) Create(path string, startedAt time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	defer f.Close()

	// The session directory reserves log names as empty files.
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("create log: %w", err)
	}
	if info.Size() > 0 {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}

	if _, err := f.WriteString(RenderHeader(w.Project, startedAt)); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	return f.Sync()
}

// AppendPrompt appends a user prompt block.
func (w *Writer) AppendPrompt(path string, ts time.Time, text string) error {
	return appendBlock(path, RenderPrompt(ts, text))
}

// AppendResponse appends a single response block of type t.
func (w *Writer) AppendResponse(path string, ts time.Time, text string, t session.ResponseType) error {
	return appendBlock(path, RenderResponse(ts, text, t))
}

// AppendSubagent appends one combined block for the texts of a sub-agent run.
func (w *Writer) AppendSubagent(path string, ts time.Time, agentType, description string, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	return appendBlock(path, RenderSubagent(ts, agentType, description, texts))
}

// AppendSummary appends the session summary footer. Callers are expected to
// invoke it once per session, from the first finalization.
func (w *Writer) AppendSummary(path string, rec *session.Record, git collector.GitStatus) error {
	return appendBlock(path, RenderSummary(rec, git))
}

// AppendNote appends a manually submitted summary with optional metadata.
func (w *Writer) AppendNote(path string, ts time.Time, text string, meta NoteMeta) error {
	return appendBlock(path, RenderNote(ts, text, meta))
}

// appendBlock writes block to the end of path in one write call. A missing
// log (header never written) is created so late events are not lost.
func appendBlock(path, block string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}
