package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guntarion/convlog/internal/session"
)

func TestLockReleasedAfterUse(t *testing.T) {
	dir := t.TempDir()
	l := session.NewLocker(dir)

	ran := false
	require.NoError(t, l.With("s", func() error {
		_, err := os.Stat(filepath.Join(dir, "s.lock"))
		assert.NoError(t, err, "lock file should exist while held")
		ran = true
		return nil
	}))
	assert.True(t, ran)

	_, err := os.Stat(filepath.Join(dir, "s.lock"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "lock file should be removed after release")
}

func TestLockPropagatesCallbackError(t *testing.T) {
	dir := t.TempDir()
	l := session.NewLocker(dir)
	boom := errors.New("boom")

	err := l.With("s", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filepath.Join(dir, "s.lock"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestLockTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "held.lock"), []byte("other"), 0o600))

	l := session.NewLocker(dir)
	l.Timeout = 50 * time.Millisecond
	l.Retry = 5 * time.Millisecond

	called := false
	err := l.With("held", func() error { called = true; return nil })
	assert.ErrorIs(t, err, session.ErrLockTimeout)
	assert.False(t, called)

	data, err := os.ReadFile(filepath.Join(dir, "held.lock"))
	require.NoError(t, err)
	assert.Equal(t, "other", string(data), "a live lock owned by someone else must not be removed")
}

func TestLockRecoversStaleLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "stale.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("crashed"), 0o600))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, past, past))

	l := session.NewLocker(dir)
	l.Timeout = 50 * time.Millisecond

	called := false
	require.NoError(t, l.With("stale", func() error { called = true; return nil }))
	assert.True(t, called)
}

func TestLockRejectsInvalidID(t *testing.T) {
	l := session.NewLocker(t.TempDir())
	err := l.With("../x", func() error { return nil })
	assert.ErrorIs(t, err, session.ErrInvalidID)
}
