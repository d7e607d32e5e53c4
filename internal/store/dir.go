package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"metrix/internal/query"
)

// Dir keeps one file per key beneath a base directory: {Base}/{key}.{ext}.
// The directory is created lazily on the first write.
type Dir struct {
	Base string
	Ext  string
}

// NewDir returns a Dir store rooted at base using ext as file extension.
func NewDir(base, ext string) *Dir {
	return &Dir{Base: base, Ext: ext}
}

// EnsureDir creates the base directory if it does not exist.
func (d *Dir) EnsureDir() error {
	if err := os.MkdirAll(d.Base, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", d.Base, err)
	}
	return nil
}

// Location returns the file path for key.
func (d *Dir) Location(key query.Key) string {
	return filepath.Join(d.Base, objectName(key, d.Ext))
}

// Exists reports whether a regular file exists for key.
func (d *Dir) Exists(_ context.Context, key query.Key) (bool, error) {
	info, err := os.Stat(d.Location(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", d.Location(key), err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("stat %s: not a regular file", d.Location(key))
	}
	return true, nil
}

// Read returns the artifact bytes for key.
func (d *Dir) Read(_ context.Context, key query.Key) ([]byte, error) {
	p := d.Location(key)
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return b, nil
}

// Write stores data for key. Data goes to a temp file in the same directory
// and is renamed into place, so a reader never sees a partial artifact.
func (d *Dir) Write(_ context.Context, key query.Key, data []byte) error {
	if err := d.EnsureDir(); err != nil {
		return err
	}
	p := d.Location(key)
	tmp, err := os.CreateTemp(d.Base, "."+key.String()+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("rename to %s: %w", p, err)
	}
	return nil
}

// List returns the keys of every artifact in the directory with the store's extension.
func (d *Dir) List() ([]query.Key, error) {
	pattern := filepath.Join(d.Base, "*")
	if d.Ext != "" {
		pattern += "." + d.Ext
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Base, err)
	}
	keys := make([]query.Key, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		if d.Ext != "" {
			name = name[:len(name)-len(d.Ext)-1]
		}
		if len(name) != query.KeyLen {
			continue
		}
		keys = append(keys, query.Key(name))
	}
	return keys, nil
}
