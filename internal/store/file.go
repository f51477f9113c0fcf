package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// FileBackend stores each key as <dir>/<key>.json.
type FileBackend struct {
	dir string
	now func() time.Time
}

// NewFileBackend creates a FileBackend rooted at dir, creating it if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "file: create dir %s", dir)
	}
	return &FileBackend{dir: dir, now: time.Now}, nil
}

// Path returns the file path used for key.
func (f *FileBackend) Path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "file: read %s", key)
	}
	return data, true, nil
}

// Put writes to a temp file in the same directory, fsyncs it, and renames it
// over the target so a crash never leaves a half-written document.
func (f *FileBackend) Put(_ context.Context, key string, data []byte) error {
	target := f.Path(key)
	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "file: create temp for %s", key)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "file: write %s", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "file: sync %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "file: close %s", key)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return eris.Wrapf(err, "file: rename into %s", target)
	}
	return nil
}

func (f *FileBackend) Quarantine(_ context.Context, key string) (string, error) {
	src := f.Path(key)
	dst := fmt.Sprintf("%s.corrupt-%d", src, f.now().Unix())
	if err := os.Rename(src, dst); err != nil {
		return "", eris.Wrapf(err, "file: quarantine %s", src)
	}
	return dst, nil
}

func (f *FileBackend) Close() error { return nil }
