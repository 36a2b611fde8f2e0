// Package sink persists one CSV artifact per processed unit with
// idempotent skip-if-exists semantics. Artifact names are a deterministic
// function of source name, grid resolution, and the unit's date or granule
// stem, so repeated runs over the same range address the same files.
package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists marks a write refused because the artifact is already complete.
// Writes never merge with or overwrite an existing artifact; reprocessing
// requires explicit deletion.
var ErrExists = errors.New("artifact already exists")

// Key locates one output artifact below the store's base directory.
type Key struct {
	Source  string
	RelPath string
}

func (k Key) String() string { return k.RelPath }

// GridKey names the artifact for one raster granule:
// <source>/csv/<granule-stem>.h3r<res>.csv
func GridKey(source string, resolution int, stem string) Key {
	return Key{
		Source:  source,
		RelPath: filepath.Join(source, "csv", fmt.Sprintf("%s.h3r%d.csv", stem, resolution)),
	}
}

// DailyKey names the artifact for one day of an occurrence source:
// <source>/daily/<source>_h3r<res>_<YYYY-MM-DD>.csv
func DailyKey(source string, resolution int, day string) Key {
	return Key{
		Source:  source,
		RelPath: filepath.Join(source, "daily", fmt.Sprintf("%s_h3r%d_%s.csv", source, resolution, day)),
	}
}

// Table is the row-schema view of one aggregated unit; text encoding is the
// sink's concern, column meaning is the source's.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Store writes artifacts below one base directory.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Path returns the absolute location of an artifact.
func (s *Store) Path(k Key) string {
	return filepath.Join(s.baseDir, k.RelPath)
}

// Exists reports whether the unit's artifact is already complete. It is the
// sole idempotence gate and must be consulted before any network I/O for
// the unit.
func (s *Store) Exists(k Key) bool {
	_, err := os.Stat(s.Path(k))
	return err == nil
}

// Write persists the table atomically: the CSV is encoded to a temp file in
// the target directory and renamed into place, so no partial artifact is
// ever visible. Existence is re-checked immediately before the rename; a
// unit completed concurrently yields ErrExists, never a clobber.
func (s *Store) Write(k Key, table Table) error {
	target := s.Path(k)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("sink: create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("sink: create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(table.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("sink: write header: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		tmp.Close()
		return fmt.Errorf("sink: write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sink: close temp artifact: %w", err)
	}

	if s.Exists(k) {
		return fmt.Errorf("sink: %s: %w", k.RelPath, ErrExists)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("sink: publish artifact: %w", err)
	}
	return nil
}
