// Package cache persists fetched source payloads between runs so that
// sources are only re-downloaded when their update frequency says so.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const indexFile = "last_updated.json"

// Record describes one cached source payload.
type Record struct {
	Slug      string
	FetchedAt time.Time
}

// Store manages the on-disk cache of one profile: the raw payload per
// source under raw/, the original archive (when the source is compressed)
// under archives/, and a JSON index mapping each slug to its last fetch
// time. Safe for concurrent use by the parallel fetch stage.
type Store struct {
	dir string

	mu    sync.Mutex
	index map[string]time.Time
	dirty bool
}

// Open loads the cache store rooted at dir, creating the directory layout
// and an empty index on first use.
func Open(dir string) (*Store, error) {
	for _, d := range []string{dir, filepath.Join(dir, "raw"), filepath.Join(dir, "archives")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	s := &Store{dir: dir, index: make(map[string]time.Time)}

	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache index: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing cache index: %w", err)
	}
	for slug, stamp := range raw {
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			return nil, fmt.Errorf("parsing cache index entry %q: %w", slug, err)
		}
		s.index[slug] = t
	}
	return s, nil
}

// Lookup returns the record for slug, or nil when the source was never
// fetched or its payload file has gone missing.
func (s *Store) Lookup(slug string) *Record {
	s.mu.Lock()
	fetchedAt, ok := s.index[slug]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if _, err := os.Stat(s.RawPath(slug)); err != nil {
		return nil
	}
	return &Record{Slug: slug, FetchedAt: fetchedAt}
}

// RawPath returns the path of the normalizer-ready payload for slug.
func (s *Store) RawPath(slug string) string {
	return filepath.Join(s.dir, "raw", slug)
}

// ArchivePath returns the path of the original archive payload for slug.
func (s *Store) ArchivePath(slug string) string {
	return filepath.Join(s.dir, "archives", slug)
}

// StoreRaw writes the normalizer-ready payload for slug and stamps the
// index with the fetch time. The index itself is persisted on Flush.
func (s *Store) StoreRaw(slug string, text []byte, fetchedAt time.Time) error {
	if err := writeFileAtomic(s.RawPath(slug), text); err != nil {
		return err
	}
	s.mu.Lock()
	s.index[slug] = fetchedAt
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// StoreArchive keeps the original compressed payload next to the cache so
// a failed extraction can be debugged without refetching.
func (s *Store) StoreArchive(slug string, payload []byte) error {
	return writeFileAtomic(s.ArchivePath(slug), payload)
}

// ReadRaw returns the cached payload for slug.
func (s *Store) ReadRaw(slug string) ([]byte, error) {
	data, err := os.ReadFile(s.RawPath(slug))
	if err != nil {
		return nil, fmt.Errorf("reading cached payload for %s: %w", slug, err)
	}
	return data, nil
}

// Flush persists the index if any source was stored since Open.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	raw := make(map[string]string, len(s.index))
	for slug, t := range s.index {
		raw[slug] = t.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, indexFile), append(data, '\n')); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
