package collector

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/guntarion/convlog/internal/session"
)

// DefaultGitTimeout bounds each git subprocess.
const DefaultGitTimeout = 5 * time.Second

// GitRunner executes a git command and returns its output.
// This abstraction allows mocking in tests.
type GitRunner func(ctx context.Context, workDir string, args ...string) (string, error)

// GitStatus is the repository state shown in the session summary.
// Available is false when git is missing, the directory is not a repository,
// or a command failed or timed out.
type GitStatus struct {
	Available bool
	Status    string // git status --short, trimmed
	DiffStat  string // git diff --shortstat, trimmed
}

// GitCollector collects git repository state for the project root.
type GitCollector struct {
	WorkDir string
	Timeout time.Duration
	Runner  GitRunner // if nil, uses the real git subprocess
}

// defaultGitRunner runs git as a real subprocess.
func defaultGitRunner(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// Collect implements Collector. Git being unavailable is never an error: the
// result carries Available=false and a warning instead.
func (g *GitCollector) Collect(ctx context.Context, _ *session.Record) (Result, error) {
	st, warn := g.Status(ctx)
	res := Result{Git: st}
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	return res, nil
}

// Status runs git status --short and git diff --shortstat, each under the
// configured timeout. The second return value explains why git data is
// unavailable, if it is.
func (g *GitCollector) Status(ctx context.Context) (GitStatus, string) {
	status, err := g.run(ctx, "status", "--short")
	if err != nil {
		return GitStatus{}, describeGitError(err)
	}
	diffStat, err := g.run(ctx, "diff", "--shortstat")
	if err != nil {
		return GitStatus{}, describeGitError(err)
	}
	return GitStatus{
		Available: true,
		Status:    strings.TrimSpace(status),
		DiffStat:  strings.TrimSpace(diffStat),
	}, ""
}

func (g *GitCollector) run(ctx context.Context, args ...string) (string, error) {
	runner := g.Runner
	if runner == nil {
		runner = defaultGitRunner
	}
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := runner(ctx, g.WorkDir, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// A killed subprocess reports "signal: killed"; surface the deadline.
		return out, ctxErr
	}
	return out, err
}

func describeGitError(err error) string {
	switch {
	case isExitCode128(err):
		return "not a git repository"
	case errors.Is(err, exec.ErrNotFound):
		return "git executable not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "git timed out"
	default:
		return "git unavailable: " + err.Error()
	}
}

// isExitCode128 reports whether err is an *exec.ExitError with exit code 128.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}
