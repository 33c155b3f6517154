// Package hook turns host-runtime lifecycle events into session record
// mutations and markdown log appends.
package hook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when stdin does not hold a usable event.
// It is the only hook failure that produces a non-zero exit status.
var ErrInvalidPayload = errors.New("invalid hook payload")

// Event is the JSON payload the runtime writes to a hook's stdin.
type Event struct {
	SessionID           string          `json:"session_id"`
	HookEventName       string          `json:"hook_event_name"`
	TranscriptPath      string          `json:"transcript_path"`
	AgentTranscriptPath string          `json:"agent_transcript_path,omitempty"`
	CWD                 string          `json:"cwd,omitempty"`
	Prompt              string          `json:"prompt,omitempty"`
	Source              string          `json:"source,omitempty"`
	Reason              string          `json:"reason,omitempty"`
	SubagentType        string          `json:"subagent_type,omitempty"`
	Description         string          `json:"description,omitempty"`
	ToolName            string          `json:"tool_name,omitempty"`
	ToolInput           json.RawMessage `json:"tool_input,omitempty"`
}

// ParseEvent decodes a payload. name, when non-empty, overrides the
// payload's hook_event_name. Payloads that are not a JSON object, or that
// leave the event name unknown, yield ErrInvalidPayload.
func ParseEvent(data []byte, name string) (*Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidPayload)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if name != "" {
		ev.HookEventName = name
	}
	if ev.HookEventName == "" {
		return nil, fmt.Errorf("%w: no event name in arguments or payload", ErrInvalidPayload)
	}
	return &ev, nil
}

type toolInput struct {
	FilePath     string `json:"file_path"`
	NotebookPath string `json:"notebook_path"`
	Pattern      string `json:"pattern"`
}

// TrackedPath returns the file a tool call touched, if the tool is one whose
// target is tracked. Glob calls are recorded as "glob:<pattern>".
func TrackedPath(toolName string, input json.RawMessage) (string, bool) {
	if len(input) == 0 {
		return "", false
	}
	var in toolInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", false
	}

	var p string
	switch toolName {
	case "Edit", "Write", "Read", "MultiEdit":
		p = in.FilePath
	case "NotebookEdit":
		p = in.NotebookPath
	case "Glob":
		if in.Pattern != "" {
			p = "glob:" + in.Pattern
		}
	}
	return p, p != ""
}
