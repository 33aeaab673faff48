//go:build linux

package backend

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Linux block-device ioctl request numbers, matching the teacher's own
// diskfs.go: BLKSSZGET for the logical sector size, BLKBSZGET for the
// physical (soft block) size. There is deliberately no BLKGETSIZE64 here:
// the teacher reads /sys/class/block/<dev>/size for device length instead
// of issuing an ioctl, and blockDeviceSize below does the same.
const (
	blkSSZGet = 0x1268     // logical sector size
	blkBSZGet = 0x80081270 // physical (soft block) size
	blkRRPart = 0x125f     // force re-read of partition table
)

// blockDeviceSize returns f's size in bytes by reading
// /sys/class/block/<dev>/size, which the kernel reports in 512-byte
// sectors, and scaling by 512. Returns ErrNotSuitable for a plain disk
// image file, which has no /sys/class/block entry.
func blockDeviceSize(f *os.File) (int64, error) {
	sizePath := fmt.Sprintf("/sys/class/block/%s/size", path.Base(f.Name()))
	raw, err := os.ReadFile(sizePath)
	if err != nil {
		return 0, ErrNotSuitable
	}
	sectors, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("backend: parsing %s: %w", sizePath, err)
	}
	return sectors * 512, nil
}

// LogicalBlockSize probes the device's logical sector size via
// BLKSSZGET. Returns ErrNotSuitable for plain files.
func LogicalBlockSize(f *os.File) (int, error) {
	n, err := unix.IoctlGetInt(int(f.Fd()), blkSSZGet)
	if err != nil {
		return 0, ErrNotSuitable
	}
	return n, nil
}

// PhysicalBlockSize probes the device's physical sector size via
// BLKBSZGET. Returns ErrNotSuitable for plain files.
func PhysicalBlockSize(f *os.File) (int, error) {
	n, err := unix.IoctlGetInt(int(f.Fd()), blkBSZGet)
	if err != nil {
		return 0, ErrNotSuitable
	}
	return n, nil
}

// ReReadPartitionTable asks the kernel to reload the partition table on a
// live block device via BLKRRPART. The ioctl is issued unconditionally; on
// a plain disk image file it fails and its error is returned
// (ReReadPartitionTableOn skips such files).
func ReReadPartitionTable(f *os.File) error {
	_, err := unix.IoctlGetInt(int(f.Fd()), blkRRPart)
	return err
}
