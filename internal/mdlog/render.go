package mdlog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guntarion/convlog/internal/collector"
	"github.com/guntarion/convlog/internal/session"
)

const (
	clockLayout = "15:04:05"
	dateLayout  = "2006-01-02 15:04:05"
)

// RenderHeader renders the banner written once when a session's log is created.
func RenderHeader(project string, startedAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("# Conversation Log\n\n")
	fmt.Fprintf(&sb, "**Session Started:** %s\n", startedAt.Format(dateLayout))
	if project != "" {
		fmt.Fprintf(&sb, "**Project:** %s\n", project)
	}
	sb.WriteString("\n---\n\n")
	return sb.String()
}

// RenderPrompt renders one user prompt section.
func RenderPrompt(ts time.Time, text string) string {
	return fmt.Sprintf("## [%s] User Prompt\n\n%s\n\n", ts.Format(clockLayout), text)
}

// RenderResponse renders one assistant response section. Sub-agent responses
// carry a marker in the heading.
func RenderResponse(ts time.Time, text string, t session.ResponseType) string {
	marker := ""
	if t == session.ResponseSubagent {
		marker = " **[Sub-Agent]**"
	}
	return fmt.Sprintf("## [%s] Assistant Response%s\n\n%s\n\n---\n\n", ts.Format(clockLayout), marker, text)
}

// RenderSubagent combines the texts produced by one sub-agent run into a
// single sub-agent response section headed by its type and description.
func RenderSubagent(ts time.Time, agentType, description string, texts []string) string {
	if agentType == "" {
		agentType = "unknown"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Sub-Agent: %s", agentType)
	if description != "" {
		fmt.Fprintf(&sb, " - %s", description)
	}
	sb.WriteString("**\n\n")

	if len(texts) == 1 {
		sb.WriteString(texts[0])
	} else {
		for i, text := range texts {
			fmt.Fprintf(&sb, "\n**Response %d:**\n%s\n", i+1, text)
		}
	}
	return RenderResponse(ts, sb.String(), session.ResponseSubagent)
}

// RenderSummary renders the footer written when a session is finalized.
// rec.EndTime must be set; the zero value of git omits the git sections.
func RenderSummary(rec *session.Record, git collector.GitStatus) string {
	end := time.Now()
	if rec.EndTime != nil {
		end = *rec.EndTime
	}

	var sb strings.Builder
	sb.WriteString("---\n\n")
	sb.WriteString("## Session Summary\n\n")
	fmt.Fprintf(&sb, "**Session Ended:** %s\n", end.Format(dateLayout))
	fmt.Fprintf(&sb, "**Duration:** %s\n", FormatDuration(end.Sub(rec.StartTime)))
	fmt.Fprintf(&sb, "**Files Modified:** %d\n", len(rec.FileChanges))
	fmt.Fprintf(&sb, "**Prompts:** %d\n", len(rec.Prompts))
	fmt.Fprintf(&sb, "**Responses:** %d\n\n", len(rec.Responses))

	if len(rec.FileChanges) > 0 {
		files := append([]string(nil), rec.FileChanges...)
		sort.Strings(files)
		sb.WriteString("**Modified Files:**\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "- `%s`\n", f)
		}
		sb.WriteString("\n")
	}

	if git.Available && git.Status != "" {
		fmt.Fprintf(&sb, "**Final Git Status:**\n```\n%s\n```\n\n", git.Status)
	}
	if git.Available && git.DiffStat != "" {
		fmt.Fprintf(&sb, "**Git Changes:** %s\n\n", git.DiffStat)
	}
	return sb.String()
}

// NoteMeta is optional context attached to a manually logged summary.
type NoteMeta struct {
	FilesChanged []string
	ToolsUsed    []string
	Git          collector.GitStatus
}

func (m NoteMeta) empty() bool {
	return len(m.FilesChanged) == 0 && len(m.ToolsUsed) == 0 &&
		(!m.Git.Available || (m.Git.Status == "" && m.Git.DiffStat == ""))
}

// RenderNote renders a manually submitted assistant summary section.
func RenderNote(ts time.Time, text string, meta NoteMeta) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## [%s] Assistant Summary\n\n%s\n\n", ts.Format(clockLayout), text)

	if !meta.empty() {
		sb.WriteString("**Metadata:**\n")
		if len(meta.FilesChanged) > 0 {
			fmt.Fprintf(&sb, "- Files modified: %s\n", strings.Join(meta.FilesChanged, ", "))
		}
		if len(meta.ToolsUsed) > 0 {
			fmt.Fprintf(&sb, "- Tools used: %s\n", strings.Join(meta.ToolsUsed, ", "))
		}
		if meta.Git.Available && meta.Git.Status != "" {
			fmt.Fprintf(&sb, "- Git status:\n```\n%s\n```\n", meta.Git.Status)
		}
		if meta.Git.Available && meta.Git.DiffStat != "" {
			fmt.Fprintf(&sb, "- Git changes: %s\n", meta.Git.DiffStat)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("---\n\n")
	return sb.String()
}

// FormatDuration renders d as H:MM:SS, prefixed by a day count past 24h.
// Negative durations render as 0:00:00.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	clock := fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
	switch {
	case days == 1:
		return "1 day, " + clock
	case days > 1:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
	return clock
}
