// Package transcript reads the host runtime's JSONL conversation transcripts.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Role constants for transcript messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxLineSize bounds a single transcript line. Tool results can embed whole
// files, so the default bufio limit is far too small.
const maxLineSize = 8 * 1024 * 1024

// Message is one decoded transcript entry.
type Message struct {
	Line    int
	Role    string
	Type    string
	Content json.RawMessage
}

// Result holds the parsed messages and one warning per line or file that
// could not be used. Warnings are never fatal.
type Result struct {
	Messages []Message
	Warnings []string
}

// rawEntry covers both the flat {"role","content"} shape and the nested
// {"type","message":{"role","content"}} shape the runtime writes.
type rawEntry struct {
	Type    string          `json:"type"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Message *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

// Read parses the transcript at path. A missing or unreadable file yields
// an empty Result with a single warning.
func Read(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Warnings: []string{fmt.Sprintf("failed to read transcript %s: %v", path, err)}}
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes JSONL from r. Blank lines are ignored and malformed lines
// are skipped with a warning.
func Parse(r io.Reader) Result {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry rawEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: failed to parse transcript line: %v", lineNo, err))
			continue
		}
		res.Messages = append(res.Messages, entry.toMessage(lineNo))
	}
	if err := scanner.Err(); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("line %d: transcript read stopped: %v", lineNo+1, err))
	}
	return res
}

func (e rawEntry) toMessage(line int) Message {
	m := Message{Line: line, Type: e.Type, Role: e.Role, Content: e.Content}
	if e.Message != nil {
		if m.Role == "" {
			m.Role = e.Message.Role
		}
		if len(m.Content) == 0 {
			m.Content = e.Message.Content
		}
	}
	if m.Role == "" && (e.Type == RoleUser || e.Type == RoleAssistant) {
		m.Role = e.Type
	}
	return m
}
