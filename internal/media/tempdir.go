package media

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FilePrefix marks every file this package creates. Purging only touches
// names carrying it, so the directory may be shared.
const FilePrefix = "xmirror_"

// TempDir owns the scratch files of downloaded and compressed media.
type TempDir struct {
	// Dir defaults to os.TempDir().
	Dir string
	// StrictPerms creates the directory 0700 and files 0600.
	StrictPerms bool
}

func (d *TempDir) path() string {
	if d == nil || strings.TrimSpace(d.Dir) == "" {
		return os.TempDir()
	}
	return d.Dir
}

// Ensure creates the directory when missing.
func (d *TempDir) Ensure() error {
	perm := os.FileMode(0o755)
	if d != nil && d.StrictPerms {
		perm = 0o700
	}
	return os.MkdirAll(d.path(), perm)
}

// Create opens a new empty file named xmirror_<uuid><ext>.
func (d *TempDir) Create(ext string) (*os.File, error) {
	if err := d.Ensure(); err != nil {
		return nil, err
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	perm := os.FileMode(0o644)
	if d != nil && d.StrictPerms {
		perm = 0o600
	}
	name := filepath.Join(d.path(), FilePrefix+uuid.NewString()+ext)
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
}

// Owns reports whether path is a file this package would have created
// inside the directory.
func (d *TempDir) Owns(path string) bool {
	dir, name := filepath.Split(path)
	return strings.HasPrefix(name, FilePrefix) && filepath.Clean(dir) == filepath.Clean(d.path())
}

// PurgeOlderThan removes xmirror_* files whose modification time is older
// than maxAge and returns how many were removed.
func (d *TempDir) PurgeOlderThan(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	return d.removeMatching(func(info fs.FileInfo) bool {
		return now.Sub(info.ModTime().UTC()) > maxAge
	})
}

// Clear removes every xmirror_* file regardless of age.
func (d *TempDir) Clear() (int, error) {
	return d.removeMatching(func(fs.FileInfo) bool { return true })
}

func (d *TempDir) removeMatching(match func(fs.FileInfo) bool) (int, error) {
	entries, err := os.ReadDir(d.path())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // vanished meanwhile
		}
		if !match(info) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path(), e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
