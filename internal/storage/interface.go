package storage

import (
	"errors"
	"io"
)

var ErrNotFound = errors.New("object not found")

// Store holds small named blobs, such as cached analysis records.
type Store interface {
	// Reader opens name for reading. A missing object is ErrNotFound.
	Reader(name string) (io.ReadCloser, error)

	// WriteAtomic replaces name with data so readers never see a partial
	// object.
	WriteAtomic(name string, data []byte) error

	Exists(name string) bool

	// Root describes where objects live: a directory or a gs:// URL.
	Root() string
}
