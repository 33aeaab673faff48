package backend

import (
	"fmt"
	"os"
)

// fileDevice wraps *os.File to add Size() and to enforce read-only access
// at the Device boundary rather than relying on the OS file mode alone.
type fileDevice struct {
	f        *os.File
	writable bool
}

// OpenFromPath opens an existing file or block device at path. If
// writable is false, WriteAt always fails with ErrReadOnlyDevice.
func OpenFromPath(path string, writable bool) (Device, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("backend: open %s: %w", path, err)
	}
	return &fileDevice{f: f, writable: writable}, nil
}

// CreateFromPath creates (or truncates) a disk image file of exactly
// sizeBytes length, ready to receive a freshly built GPT.
func CreateFromPath(path string, sizeBytes int64) (Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("backend: create %s: %w", path, err)
	}
	if err := f.Truncate(sizeBytes); err != nil {
		f.Close()
		return nil, fmt.Errorf("backend: truncate %s to %d bytes: %w", path, sizeBytes, err)
	}
	return &fileDevice{f: f, writable: true}, nil
}

func (d *fileDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

func (d *fileDevice) WriteAt(p []byte, off int64) (int, error) {
	if !d.writable {
		return 0, ErrReadOnlyDevice
	}
	return d.f.WriteAt(p, off)
}

func (d *fileDevice) Seek(offset int64, whence int) (int64, error) {
	return d.f.Seek(offset, whence)
}

func (d *fileDevice) Close() error { return d.f.Close() }

func (d *fileDevice) Sync() error {
	if !d.writable {
		return nil
	}
	return d.f.Sync()
}

func (d *fileDevice) Size() (int64, error) {
	if sz, err := blockDeviceSize(d.f); err == nil {
		return sz, nil
	}
	info, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Sys returns the underlying *os.File for callers that need platform-
// specific access (mirrors the teacher's backend.Storage.Sys()).
func (d *fileDevice) Sys() *os.File { return d.f }

// DetectLogicalBlockSize returns d's logical sector size via ioctl if d is
// backed by a real block device, or ErrNotSuitable otherwise (e.g. a plain
// disk image file, which has no intrinsic sector size).
func DetectLogicalBlockSize(d Device) (int, error) {
	fd, ok := d.(*fileDevice)
	if !ok {
		return 0, ErrNotSuitable
	}
	return LogicalBlockSize(fd.f)
}

// ReReadPartitionTableOn issues BLKRRPART on d if it is backed by a real
// Linux block device; a no-op otherwise.
func ReReadPartitionTableOn(d Device) error {
	fd, ok := d.(*fileDevice)
	if !ok {
		return nil
	}
	if typ, err := DetermineDeviceType(fd.f.Name()); err != nil || typ != DeviceTypeBlockDevice {
		return nil
	}
	return ReReadPartitionTable(fd.f)
}
