package backend

import "fmt"

// MemDevice is an in-memory Device backed by a byte slice, standing in for
// a real block device or disk image file in tests.
type MemDevice struct {
	data     []byte
	pos      int64
	writable bool
}

// NewMemDevice returns a writable MemDevice of exactly sizeBytes, zeroed.
func NewMemDevice(sizeBytes int64) *MemDevice {
	return &MemDevice{data: make([]byte, sizeBytes), writable: true}
}

// NewMemDeviceFromBytes returns a writable MemDevice whose initial
// contents are a copy of b.
func NewMemDeviceFromBytes(b []byte) *MemDevice {
	data := make([]byte, len(b))
	copy(data, b)
	return &MemDevice{data: data, writable: true}
}

// SetWritable toggles write permission, for exercising the read-only
// policy paths without a real file.
func (m *MemDevice) SetWritable(w bool) { m.writable = w }

// Bytes returns the current backing contents, for assertions in tests.
func (m *MemDevice) Bytes() []byte { return m.data }

func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("backend: read offset %d out of range [0,%d]", off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("backend: short read at offset %d: got %d of %d bytes", off, n, len(p))
	}
	return n, nil
}

func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	if !m.writable {
		return 0, ErrReadOnlyDevice
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("backend: write [%d,%d) out of range [0,%d]", off, off+int64(len(p)), len(m.data))
	}
	return copy(m.data[off:], p), nil
}

func (m *MemDevice) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case 0:
		target = offset
	case 1:
		target = m.pos + offset
	case 2:
		target = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf("backend: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("backend: negative seek position %d", target)
	}
	m.pos = target
	return m.pos, nil
}

func (m *MemDevice) Sync() error { return nil }

func (m *MemDevice) Close() error { return nil }

func (m *MemDevice) Size() (int64, error) { return int64(len(m.data)), nil }
