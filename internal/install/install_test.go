package install

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readSettings(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestInstallCreatesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claude", "settings.json")

	rep, err := Install(path, "convlog", []string{"Stop", "PostToolUse"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PostToolUse", "Stop"}, rep.Added)

	hooks := readSettings(t, path)["hooks"].(map[string]any)
	stop := hooks["Stop"].([]any)[0].(map[string]any)
	assert.NotContains(t, stop, "matcher")
	cmd := stop["hooks"].([]any)[0].(map[string]any)
	assert.Equal(t, "command", cmd["type"])
	assert.Equal(t, "convlog hook Stop", cmd["command"])

	post := hooks["PostToolUse"].([]any)[0].(map[string]any)
	assert.Equal(t, toolMatcher, post["matcher"])
}

func TestInstallIsIdempotentAndPreservesSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{
  "model": "custom",
  "hooks": {
    "Stop": [{"hooks": [{"type": "command", "command": "afplay done.aiff"}]}]
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	rep, err := Install(path, "convlog", []string{"Stop"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stop"}, rep.Added)

	rep, err = Install(path, "convlog", []string{"Stop"})
	require.NoError(t, err)
	assert.Empty(t, rep.Added)
	assert.Equal(t, []string{"Stop"}, rep.Present)

	settings := readSettings(t, path)
	assert.Equal(t, "custom", settings["model"])
	stop := settings["hooks"].(map[string]any)["Stop"].([]any)
	assert.Len(t, stop, 2, "the unrelated Stop hook must be kept")
}

func TestInstallRejectsMalformedSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := Install(path, "convlog", []string{"Stop"})
	assert.Error(t, err)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "{broken", string(data), "malformed settings must not be overwritten")
}
