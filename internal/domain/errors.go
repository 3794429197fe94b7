package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrPoolBusy          = errors.New("pool busy: a load is in flight")
	ErrPoolClosed        = errors.New("pool closed")
	ErrLoadInProgress    = errors.New("load in progress")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrUnknownStrategy   = errors.New("unknown strategy")
)

// DecodeError reports a single file that could not be decoded.
// It never aborts a load.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
