package backend

import "fmt"

// Sub is a Device bounded to [offset, offset+length) of an underlying
// Device, used to hand a caller a view over exactly one partition's byte
// range without exposing the rest of the disk.
type Sub struct {
	base          Device
	offset, length int64
	pos           int64
}

// NewSub returns a Device view over base restricted to
// [offset, offset+length).
func NewSub(base Device, offset, length int64) *Sub {
	return &Sub{base: base, offset: offset, length: length}
}

func (s *Sub) bound(off int64, n int) error {
	if off < 0 || int64(n) > s.length-off {
		return fmt.Errorf("backend: access [%d,%d) escapes sub-device bounds [0,%d)", off, off+int64(n), s.length)
	}
	return nil
}

func (s *Sub) ReadAt(p []byte, off int64) (int, error) {
	if err := s.bound(off, len(p)); err != nil {
		return 0, err
	}
	return s.base.ReadAt(p, s.offset+off)
}

func (s *Sub) WriteAt(p []byte, off int64) (int, error) {
	if err := s.bound(off, len(p)); err != nil {
		return 0, err
	}
	return s.base.WriteAt(p, s.offset+off)
}

func (s *Sub) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case 0:
		target = offset
	case 1:
		target = s.pos + offset
	case 2:
		target = s.length + offset
	default:
		return 0, fmt.Errorf("backend: invalid whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("backend: negative seek position %d", target)
	}
	s.pos = target
	return s.pos, nil
}

func (s *Sub) Sync() error { return s.base.Sync() }

func (s *Sub) Close() error { return nil }

func (s *Sub) Size() (int64, error) { return s.length, nil }
