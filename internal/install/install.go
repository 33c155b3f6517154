// Package install wires convlog into the runtime's settings.json hook table.
package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultSettingsPath is the project-level settings file, relative to the project root.
var DefaultSettingsPath = filepath.Join(".claude", "settings.json")

// toolMatcher limits PostToolUse/PreToolUse hooks to the tools whose targets are tracked.
const toolMatcher = "Edit|Write|Read|MultiEdit|NotebookEdit|Glob"

// Report describes what Install changed.
type Report struct {
	Path    string
	Added   []string // events that gained a hook entry
	Present []string // events that were already wired
}

// Command returns the hook command line for event.
func Command(binary, event string) string {
	return binary + " hook " + event
}

// Install adds a command hook running "<binary> hook <Event>" for each event
// to the settings file at path, creating the file if needed. Unrelated
// settings and hooks are preserved, and events already wired are left alone.
func Install(path, binary string, events []string) (Report, error) {
	rep := Report{Path: path}

	settings := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &settings); err != nil {
				return rep, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return rep, fmt.Errorf("reading %s: %w", path, err)
	}

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
	}

	sorted := append([]string(nil), events...)
	sort.Strings(sorted)
	for _, event := range sorted {
		cmdLine := Command(binary, event)
		entries, _ := hooks[event].([]any)
		if hasCommand(entries, cmdLine) {
			rep.Present = append(rep.Present, event)
			continue
		}
		entry := map[string]any{
			"hooks": []any{map[string]any{"type": "command", "command": cmdLine}},
		}
		if event == "PostToolUse" || event == "PreToolUse" {
			entry["matcher"] = toolMatcher
		}
		hooks[event] = append(entries, entry)
		rep.Added = append(rep.Added, event)
	}
	settings["hooks"] = hooks

	if len(rep.Added) == 0 {
		return rep, nil
	}
	return rep, writeJSON(path, settings)
}

func hasCommand(entries []any, cmdLine string) bool {
	for _, e := range entries {
		m, _ := e.(map[string]any)
		inner, _ := m["hooks"].([]any)
		for _, h := range inner {
			hm, _ := h.(map[string]any)
			if c, _ := hm["command"].(string); c == cmdLine {
				return true
			}
		}
	}
	return false
}

// writeJSON replaces path via a temp file + os.Rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
