// Package authstore implements a file-based key/value token store
// satisfying the spec's "persistent key/value storage for auth tokens"
// out-of-scope collaborator slot (SPEC_FULL.md section 6), adapted from
// the teacher's internal/tokenfile atomic write-to-temp-then-rename
// pattern. The core never reads or interprets the stored value.
package authstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePerms restricts the store file to owner-only read/write, matching
// the teacher's token file permissions.
const FilePerms = 0o600

// DirPerms is used when creating the store's parent directory.
const DirPerms = 0o700

// Store is a flat JSON object on disk, one entry per auth token key
// (e.g. "access", "refresh").
type Store struct {
	path string
}

// Open returns a Store backed by the file at path. The file is created on
// first Save; Load on a missing file returns an empty map, not an error.
func Open(path string) *Store {
	return &Store{path: path}
}

// Load returns the full set of stored key/value pairs.
func (s *Store) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("pbsync: authstore: reading %s: %w", s.path, err)
	}

	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("pbsync: authstore: decoding %s: %w", s.path, err)
	}

	return out, nil
}

// Get returns a single stored value, or ("", false) if absent.
func (s *Store) Get(key string) (string, bool, error) {
	all, err := s.Load()
	if err != nil {
		return "", false, err
	}

	v, ok := all[key]

	return v, ok, nil
}

// Set stores a single key/value pair, preserving the rest of the file.
func (s *Store) Set(key, value string) error {
	all, err := s.Load()
	if err != nil {
		return err
	}

	all[key] = value

	return s.save(all)
}

// Delete removes a key, a no-op if absent.
func (s *Store) Delete(key string) error {
	all, err := s.Load()
	if err != nil {
		return err
	}

	delete(all, key)

	return s.save(all)
}

// save writes the full map atomically: temp file in the same directory,
// fsync, then rename — the teacher's tokenfile.Save sequence, so a power
// loss between close and rename never leaves a partial file at path.
func (s *Store) save(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("pbsync: authstore: encoding: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("pbsync: authstore: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".authstore-*.tmp")
	if err != nil {
		return fmt.Errorf("pbsync: authstore: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("pbsync: authstore: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pbsync: authstore: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("pbsync: authstore: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pbsync: authstore: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("pbsync: authstore: renaming: %w", err)
	}

	success = true

	return nil
}
