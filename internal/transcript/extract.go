package transcript

import (
	"bytes"
	"encoding/json"
)

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// AssistantTexts returns the response texts of every assistant message in
// order. String content is one text; block content yields one text per
// non-empty "text" block. Other block types (tool_use, thinking) are skipped.
func AssistantTexts(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		out = append(out, contentTexts(m.Content)...)
	}
	return out
}

func contentTexts(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return []string{s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		var texts []string
		for _, item := range items {
			var b contentBlock
			// Non-object items are not blocks; skip them.
			if err := json.Unmarshal(item, &b); err != nil {
				continue
			}
			if b.Type == "text" && b.Text != "" {
				texts = append(texts, b.Text)
			}
		}
		return texts
	}
	return nil
}

// NewResponses returns the assistant texts after the first n, i.e. those not
// yet recorded. n is clamped to [0, len(texts)].
func NewResponses(msgs []Message, n int) []string {
	texts := AssistantTexts(msgs)
	if n < 0 {
		n = 0
	}
	if n >= len(texts) {
		return nil
	}
	return texts[n:]
}
