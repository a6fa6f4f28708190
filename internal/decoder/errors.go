package decoder

import (
	"errors"
	"fmt"
)

var (
	ErrIO                = errors.New("io error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrCorruptStream     = errors.New("corrupt stream")
)

// Error wraps a decode failure with the operation and file it happened on.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decoder: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError tags cause with one of the package sentinels so callers can use errors.Is.
func newError(op, path string, kind, cause error) error {
	if cause == nil {
		return &Error{Op: op, Path: path, Err: kind}
	}
	return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", kind, cause)}
}
