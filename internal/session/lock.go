package session

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrLockTimeout is returned when another process holds a session lock for
// longer than the configured timeout.
var ErrLockTimeout = errors.New("session lock timeout")

const (
	defaultLockTimeout    = 5 * time.Second
	defaultLockRetry      = 10 * time.Millisecond
	defaultLockStaleAfter = 30 * time.Second
)

// Locker serializes load-mutate-save cycles on one session across processes
// using an O_EXCL lock file next to the record.
type Locker struct {
	Dir        string
	Timeout    time.Duration
	Retry      time.Duration
	StaleAfter time.Duration
}

// NewLocker returns a Locker that keeps <id>.lock files in dir.
func NewLocker(dir string) *Locker {
	return &Locker{
		Dir:        dir,
		Timeout:    defaultLockTimeout,
		Retry:      defaultLockRetry,
		StaleAfter: defaultLockStaleAfter,
	}
}

// With runs fn while holding the lock for id.
func (l *Locker) With(id string, fn func() error) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	lockPath := filepath.Join(l.Dir, id+".lock")
	token := []byte(uuid.NewString())

	start := time.Now()
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.Write(token)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(lockPath)
				return fmt.Errorf("acquire session lock: %w", errors.Join(werr, cerr))
			}
			defer l.release(lockPath, token)
			return fn()
		}
		if !isLockContention(err, lockPath) {
			return fmt.Errorf("acquire session lock: %w", err)
		}
		if l.isStale(lockPath) {
			os.Remove(lockPath)
			continue
		}
		if time.Since(start) >= l.Timeout {
			return fmt.Errorf("%w: %s", ErrLockTimeout, id)
		}
		time.Sleep(l.Retry)
	}
}

// release removes the lock file only while it still holds our token, so a
// lock taken over after stale recovery is left alone.
func (l *Locker) release(lockPath string, token []byte) {
	data, err := os.ReadFile(lockPath)
	if err != nil || !bytes.Equal(data, token) {
		return
	}
	os.Remove(lockPath)
}

// RemoveStale deletes lock files older than StaleAfter. Their owners are
// gone, and With would only recover them on the next access to that id.
func (l *Locker) RemoveStale() error {
	matches, err := filepath.Glob(filepath.Join(l.Dir, "*.lock"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if !l.isStale(m) {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Locker) isStale(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > l.StaleAfter
}

func isLockContention(err error, lockPath string) bool {
	if os.IsExist(err) {
		return true
	}
	if !os.IsPermission(err) {
		return false
	}
	_, statErr := os.Stat(lockPath)
	return statErr == nil
}
