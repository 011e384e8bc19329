// Package backup keeps timestamped copies of hosts files and prunes the
// oldest ones beyond the retention limit.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Error reports a failed backup. Backups are best-effort, callers log
// the error and keep going.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backing up %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const stampLayout = "2006-01-02-15-04-05"

// Manager rotates timestamped copies under Dir, keeping at most Keep
// per prefix. Prefixes rotate independently.
type Manager struct {
	Dir  string
	Keep int
	Now  func() time.Time // defaults to time.Now
}

// Rotate copies path into the backup directory as <prefix>-<timestamp>
// and prunes the oldest copies with the same prefix beyond the retention
// limit. With Keep == 0 even the fresh copy is removed again.
func (m *Manager) Rotate(path, prefix string) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return &Error{Path: path, Err: err}
	}

	name := fmt.Sprintf("%s-%s", prefix, now().Format(stampLayout))
	if err := copyFile(path, filepath.Join(m.Dir, name)); err != nil {
		return &Error{Path: path, Err: err}
	}
	if err := m.prune(prefix); err != nil {
		return &Error{Path: path, Err: err}
	}
	return nil
}

// prune removes the oldest backups carrying prefix. Timestamped names
// sort chronologically, so lexical order is age order.
func (m *Manager) prune(prefix string) error {
	matches, err := filepath.Glob(filepath.Join(m.Dir, prefix+"-*"))
	if err != nil {
		return err
	}
	if len(matches) <= m.Keep {
		return nil
	}
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-m.Keep] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
