package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Action names understood by the hook dispatcher.
const (
	ActionStart    = "start"
	ActionPrompt   = "prompt"
	ActionStop     = "stop"
	ActionSubagent = "subagent"
	ActionEnd      = "end"
	ActionTrack    = "track"
	ActionNone     = "none"
)

// Config holds all configurable convlog settings.
type Config struct {
	ProjectRoot   string            `mapstructure:"project_root"`
	ProjectName   string            `mapstructure:"project_name"`
	BaseDir       string            `mapstructure:"base_dir"`     // markdown logs, relative to ProjectRoot
	SessionsDir   string            `mapstructure:"sessions_dir"` // records, relative to ProjectRoot
	RetentionDays int               `mapstructure:"retention_days"`
	GitTimeout    time.Duration     `mapstructure:"git_timeout"`
	LockTimeout   time.Duration     `mapstructure:"lock_timeout"`
	Debug         bool              `mapstructure:"debug"`
	Events        map[string]string `mapstructure:"events"` // hook event name -> action
}

// DefaultEvents returns the stock event-to-action wiring.
func DefaultEvents() map[string]string {
	return map[string]string{
		"SessionStart":     ActionStart,
		"UserPromptSubmit": ActionPrompt,
		"Stop":             ActionStop,
		"SubagentStop":     ActionSubagent,
		"SessionEnd":       ActionEnd,
		"PostToolUse":      ActionTrack,
		"PreToolUse":       ActionNone,
		"Notification":     ActionNone,
	}
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BaseDir:       "dev-logs",
		SessionsDir:   filepath.Join(".claude", "data", "sessions"),
		RetentionDays: 30,
		GitTimeout:    5 * time.Second,
		LockTimeout:   5 * time.Second,
		Events:        lowerKeys(DefaultEvents()),
	}
}

// Options controls where Load looks for configuration.
type Options struct {
	// ProjectRoot, when set, wins over every other source.
	ProjectRoot string
	// GlobalFile overrides ~/.config/convlog/config.yaml.
	GlobalFile string
}

// ProjectFileName is the per-project config file looked up in the project root.
const ProjectFileName = ".convlog.yaml"

// Load resolves configuration from, lowest precedence first: defaults, the
// global file, the project file, and CONVLOG_* environment variables.
// Missing files are not an error; malformed files yield a *ParseError.
func Load(opts Options) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CONVLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	globalFile := opts.GlobalFile
	if globalFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			globalFile = filepath.Join(home, ".config", "convlog", "config.yaml")
		}
	}
	if err := mergeFile(v, globalFile); err != nil {
		return Config{}, err
	}

	root, err := resolveRoot(opts.ProjectRoot, v.GetString("project_root"))
	if err != nil {
		return Config{}, err
	}
	if err := mergeFile(v, filepath.Join(root, ProjectFileName)); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ProjectRoot = root
	cfg.Events = lowerKeys(cfg.Events)
	return cfg, nil
}

// Fallback returns the defaults rooted where Load would have rooted them.
// Hooks use it when a config file is broken so events are still logged.
func Fallback(opts Options) Config {
	cfg := Defaults()
	root, err := resolveRoot(opts.ProjectRoot, os.Getenv("CONVLOG_PROJECT_ROOT"))
	if err != nil {
		root = "."
	}
	cfg.ProjectRoot = root
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("project_root", "")
	v.SetDefault("project_name", "")
	v.SetDefault("base_dir", d.BaseDir)
	v.SetDefault("sessions_dir", d.SessionsDir)
	v.SetDefault("retention_days", d.RetentionDays)
	v.SetDefault("git_timeout", d.GitTimeout)
	v.SetDefault("lock_timeout", d.LockTimeout)
	v.SetDefault("debug", false)
	v.SetDefault("events", DefaultEvents())
}

// mergeFile layers the config file at path over v. An absent file is skipped.
func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// resolveRoot picks the project root: explicit option, configured value,
// then the runtime-provided CLAUDE_PROJECT_DIR, then the working directory.
func resolveRoot(explicit, configured string) (string, error) {
	for _, candidate := range []string{explicit, configured, os.Getenv("CLAUDE_PROJECT_DIR")} {
		if candidate != "" {
			return filepath.Abs(candidate)
		}
	}
	return os.Getwd()
}

// Action returns the action wired to a hook event. Event names are matched
// case-insensitively; unknown events map to ActionNone.
func (c Config) Action(event string) string {
	if a, ok := c.Events[strings.ToLower(event)]; ok && a != "" {
		return a
	}
	return ActionNone
}

// SessionsPath returns the absolute directory holding session records.
func (c Config) SessionsPath() string {
	return c.resolve(c.SessionsDir)
}

// LogsPath returns the absolute markdown log base directory.
func (c Config) LogsPath() string {
	return c.resolve(c.BaseDir)
}

// Retention returns the prune threshold.
func (c Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

// viper folds keys to lower case; defaults are normalized the same way so
// lookups behave identically whichever source supplied the mapping.
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
