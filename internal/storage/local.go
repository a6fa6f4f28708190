package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultDirName is created under the user's home directory.
const DefaultDirName = ".dj-cache"

// LocalFileStorage implements Store on the local filesystem.
type LocalFileStorage struct {
	dir string
}

// NewLocalFileStorage creates dir if needed. An empty dir means DefaultDir().
func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

// DefaultDir returns ${HOME}/.dj-cache, or the working directory when no home
// directory is known.
func DefaultDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, DefaultDirName)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func (s *LocalFileStorage) Root() string {
	return s.dir
}

// Path returns the file backing name.
func (s *LocalFileStorage) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *LocalFileStorage) Reader(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, err
}

// WriteAtomic writes to a temporary file in the same directory and renames
// it over the target.
func (s *LocalFileStorage) WriteAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *LocalFileStorage) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
