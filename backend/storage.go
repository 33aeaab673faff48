// Package backend supplies the device capability contract external GPT
// callers plug into a disk view: positioned read, positioned write, seek,
// query length, and flush-to-durable-storage.
package backend

import (
	"errors"
	"io"
)

// Device is the capability contract a disk view requires of the
// underlying storage: LBS-aligned positioned I/O, seeking, total length,
// and a durability barrier. A *os.File wrapped by OpenFromPath or
// CreateFromPath satisfies this natively.
type Device interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
	io.Closer
	// Sync flushes any buffered writes to durable storage.
	Sync() error
	// Size returns the device's total length in bytes.
	Size() (int64, error)
}

// ErrReadOnlyDevice is returned by WriteAt on a Device opened read-only.
var ErrReadOnlyDevice = errors.New("backend: device is read-only")

// ErrNotSuitable is returned when a Device cannot support an operation
// (for example, issuing an ioctl against a plain disk image file).
var ErrNotSuitable = errors.New("backend: device does not support this operation")
