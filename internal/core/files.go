package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore saves and reads back file contents by path.
type FileStore interface {
	// Save writes r under a unique name derived from name and returns the
	// stored path.
	Save(name string, r io.Reader) (string, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

// LocalFiles stores files in a directory on local disk.
type LocalFiles struct {
	dir string
}

// NewLocalFiles creates dir if needed.
func NewLocalFiles(dir string) (*LocalFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrIOFailure, dir, err)
	}
	return &LocalFiles{dir: dir}, nil
}

// Dir returns the backing directory.
func (l *LocalFiles) Dir() string {
	return l.dir
}

// Save writes r to "<uuid>_<base name>" inside the directory.
func (l *LocalFiles) Save(name string, r io.Reader) (string, error) {
	path := filepath.Join(l.dir, uuid.NewString()+"_"+SafeName(name))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create file: %v", ErrIOFailure, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("%w: write file: %v", ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: close file: %v", ErrIOFailure, err)
	}
	return path, nil
}

// Open opens a stored file. A missing file wraps ErrNotFound.
func (l *LocalFiles) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: stored file %s", ErrNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: open file: %v", ErrIOFailure, err)
	}
	return f, nil
}

// Remove deletes a stored file. Removing a missing file is not an error.
func (l *LocalFiles) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove file: %v", ErrIOFailure, err)
	}
	return nil
}

// SafeName strips any directory part from a client-supplied file name.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "upload.csv"
	}
	return name
}
