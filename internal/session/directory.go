package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Directory maps session ids to records and markdown log paths, and owns
// the session lifecycle. Every mutation is a locked load-mutate-save.
type Directory struct {
	Store RecordStore
	Locks *Locker
	// Root is the project root; LogFile paths are relative to it.
	Root string
	// BaseDir is the markdown log directory relative to Root.
	BaseDir string
	Now     func() time.Time
}

// NewDirectory builds a Directory keeping records in sessionsDir.
func NewDirectory(root, baseDir, sessionsDir string) (*Directory, error) {
	store, err := NewRecordStore(sessionsDir)
	if err != nil {
		return nil, err
	}
	return &Directory{
		Store:   store,
		Locks:   NewLocker(sessionsDir),
		Root:    root,
		BaseDir: baseDir,
		Now:     time.Now,
	}, nil
}

func (d *Directory) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// Exists reports whether a record is stored for id.
func (d *Directory) Exists(id string) bool {
	return d.Store.Exists(id)
}

// Load returns the stored record for id without locking.
func (d *Directory) Load(id string) (*Record, error) {
	return d.Store.Load(id)
}

// LogPath returns the absolute path of the markdown log for rec.
func (d *Directory) LogPath(rec *Record) string {
	if filepath.IsAbs(rec.LogFile) {
		return rec.LogFile
	}
	return filepath.Join(d.Root, rec.LogFile)
}

// GetOrCreate returns the record for id, creating and persisting a new one
// when none exists. onCreate, if non-nil, runs for new records only, after
// the record is saved and while the session lock is still held.
func (d *Directory) GetOrCreate(id string, onCreate func(*Record) error) (*Record, bool, error) {
	var (
		rec     *Record
		created bool
	)
	err := d.Locks.With(id, func() error {
		existing, err := d.Store.Load(id)
		if err == nil {
			rec = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := d.now()
		logFile, err := d.reserveLogFile(now)
		if err != nil {
			return err
		}
		rec = &Record{
			SessionID:   id,
			StartTime:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
			LogFile:     logFile,
			Prompts:     []Prompt{},
			Responses:   []Response{},
			FileChanges: []string{},
		}
		if err := d.Store.Save(id, rec); err != nil {
			os.Remove(d.LogPath(rec))
			return err
		}
		created = true
		if onCreate != nil {
			if err := onCreate(rec); err != nil {
				return fmt.Errorf("initializing session %s: %w", id, err)
			}
		}
		return nil
	})
	return rec, created, err
}

// reserveLogFile claims <base>/<YYYY-MM-DD>/<YYYY-MM-DD-HHMMSS>-conversation.md
// by creating it empty with O_EXCL, adding -2, -3, ... when a session started
// in the same second already owns the name. Sessions lock separately, so the
// exclusive create is what keeps two of them off one log.
func (d *Directory) reserveLogFile(now time.Time) (string, error) {
	day := now.Format("2006-01-02")
	stamp := now.Format("2006-01-02-150405")
	if err := os.MkdirAll(filepath.Join(d.Root, d.BaseDir, day), 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	rel := filepath.Join(d.BaseDir, day, stamp+"-conversation.md")
	for n := 2; ; n++ {
		f, err := os.OpenFile(filepath.Join(d.Root, rel), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("reserve log file: %w", err)
			}
			return filepath.ToSlash(rel), nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("reserve log file: %w", err)
		}
		rel = filepath.Join(d.BaseDir, day, fmt.Sprintf("%s-%d-conversation.md", stamp, n))
	}
}

// Update runs fn on the stored record for id under the session lock and
// saves the result. If fn returns an error the record is not saved.
// Returns ErrNotFound when no record exists.
func (d *Directory) Update(id string, fn func(*Record) error) (*Record, error) {
	var rec *Record
	err := d.Locks.With(id, func() error {
		r, err := d.Store.Load(id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		r.UpdatedAt = d.now()
		rec = r
		return d.Store.Save(id, r)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// AddPrompt appends a user prompt to the session.
func (d *Directory) AddPrompt(id, text string) error {
	_, err := d.Update(id, func(r *Record) error {
		r.Prompts = append(r.Prompts, Prompt{Timestamp: d.now(), Content: text})
		return nil
	})
	return err
}

// AddResponse appends an assistant response of the given type.
func (d *Directory) AddResponse(id, text string, t ResponseType) error {
	_, err := d.Update(id, func(r *Record) error {
		r.Responses = append(r.Responses, Response{Timestamp: d.now(), Content: text, Type: t})
		return nil
	})
	return err
}

// AddFileChange tracks path as touched. Paths already tracked are left as is.
func (d *Directory) AddFileChange(id, path string) error {
	_, err := d.Update(id, func(r *Record) error {
		if !r.HasFileChange(path) {
			r.FileChanges = append(r.FileChanges, path)
		}
		return nil
	})
	return err
}

// Finalize marks the session finished and stamps end_time. onFirst runs only
// on the first finalization, with EndTime already set, before the record is
// saved; repeated calls just refresh end_time.
func (d *Directory) Finalize(id string, onFirst func(*Record) error) (*Record, error) {
	return d.Update(id, func(r *Record) error {
		end := d.now()
		r.EndTime = &end
		if r.Finalized {
			return nil
		}
		if onFirst != nil {
			if err := onFirst(r); err != nil {
				return err
			}
		}
		r.Finalized = true
		return nil
	})
}

// Prune deletes records whose file was last modified more than olderThan ago,
// each under its session lock, then clears lock files abandoned by crashed
// processes. Markdown logs are never touched.
func (d *Directory) Prune(olderThan time.Duration) (int, error) {
	entries, err := d.Store.List()
	if err != nil {
		return 0, err
	}
	cutoff := d.now().Add(-olderThan)
	deleted := 0
	var errs []error
	for _, e := range entries {
		if !e.ModTime.Before(cutoff) {
			continue
		}
		err := d.Locks.With(e.ID, func() error {
			return d.Store.Delete(e.ID)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}
	if err := d.Locks.RemoveStale(); err != nil {
		errs = append(errs, err)
	}
	return deleted, errors.Join(errs...)
}
