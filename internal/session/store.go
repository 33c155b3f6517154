package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by Load when no record exists for the session id.
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned for session ids that cannot be used as a file key.
var ErrInvalidID = errors.New("invalid session id")

const recordExt = ".json"

// RecordStore persists one Record per session id.
type RecordStore interface {
	Exists(id string) bool
	Load(id string) (*Record, error) // returns ErrNotFound if none exists
	Save(id string, r *Record) error
	Delete(id string) error
	List() ([]Entry, error)
}

// Entry describes a stored record without decoding it.
type Entry struct {
	ID      string
	ModTime time.Time
}

// ParseError is returned when a record file exists but is not valid JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse session record " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// diskStore keeps records as <dir>/<id>.json.
type diskStore struct {
	dir string
}

// NewRecordStore returns a RecordStore rooted at dir, creating it if needed.
func NewRecordStore(dir string) (RecordStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

// ValidateID rejects ids that would escape the sessions directory.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." ||
		strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") ||
		strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (d *diskStore) path(id string) string {
	return filepath.Join(d.dir, id+recordExt)
}

func (d *diskStore) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	_, err := os.Stat(d.path(id))
	return err == nil
}

// Load reads and unmarshals the record for id.
// Returns ErrNotFound if the file does not exist.
func (d *diskStore) Load(id string) (*Record, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	p := d.path(id)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &ParseError{Path: p, Err: err}
	}
	r.normalize()
	return &r, nil
}

// Save marshals r and replaces the record for id via a temp file + os.Rename.
func (d *diskStore) Save(id string, r *Record) (err error) {
	if err := ValidateID(id); err != nil {
		return err
	}
	r.normalize()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}

	// Same directory so os.Rename stays atomic. The .tmp suffix keeps
	// half-written files out of List.
	tmp, err := os.CreateTemp(d.dir, id+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	if err = os.Rename(tmpName, d.path(id)); err != nil {
		return fmt.Errorf("failed to persist session record: %w", err)
	}
	return nil
}

// Delete removes the record for id. Missing records are not an error.
func (d *diskStore) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(d.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

// List returns every stored record, oldest modification first.
func (d *diskStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || filepath.Ext(name) != recordExt {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:      strings.TrimSuffix(name, recordExt),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}
