package session

import "time"

// ResponseType distinguishes main-agent responses from sub-agent responses.
type ResponseType string

const (
	ResponseAgent    ResponseType = "agent"
	ResponseSubagent ResponseType = "subagent"
)

// Record is the durable state tracked for one assistant session.
type Record struct {
	SessionID   string     `json:"session_id"`
	StartTime   time.Time  `json:"start_time"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	LogFile     string     `json:"log_file"` // relative to the project root, never changed
	Prompts     []Prompt   `json:"prompts"`
	Responses   []Response `json:"responses"`
	FileChanges []string   `json:"file_changes"`
	Finalized   bool       `json:"finalized"`
	// SubagentOffsets counts the texts already logged from each sub-agent
	// transcript, keyed by transcript path.
	SubagentOffsets map[string]int `json:"subagent_offsets,omitempty"`
}

// Prompt is a user prompt as submitted to the assistant.
type Prompt struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// Response is one assistant text block recorded from a transcript.
type Response struct {
	Timestamp time.Time    `json:"timestamp"`
	Content   string       `json:"content"`
	Type      ResponseType `json:"type"`
}

// CountResponses returns how many recorded responses have the given type.
func (r *Record) CountResponses(t ResponseType) int {
	n := 0
	for _, resp := range r.Responses {
		if resp.Type == t {
			n++
		}
	}
	return n
}

// SubagentOffset returns how many texts of the sub-agent transcript at path
// have been logged.
func (r *Record) SubagentOffset(path string) int {
	return r.SubagentOffsets[path]
}

// AdvanceSubagent marks n more texts of the transcript at path as logged.
func (r *Record) AdvanceSubagent(path string, n int) {
	if r.SubagentOffsets == nil {
		r.SubagentOffsets = map[string]int{}
	}
	r.SubagentOffsets[path] += n
}

// HasFileChange reports whether path is already tracked.
func (r *Record) HasFileChange(path string) bool {
	for _, p := range r.FileChanges {
		if p == path {
			return true
		}
	}
	return false
}

// normalize replaces nil collections so a saved record always carries
// empty JSON arrays instead of null.
func (r *Record) normalize() {
	if r.Prompts == nil {
		r.Prompts = []Prompt{}
	}
	if r.Responses == nil {
		r.Responses = []Response{}
	}
	if r.FileChanges == nil {
		r.FileChanges = []string{}
	}
}
