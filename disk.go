package gpt

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Quyzi/gpt/backend"
	"github.com/Quyzi/gpt/header"
	"github.com/Quyzi/gpt/mbr"
	"github.com/Quyzi/gpt/part"
	"github.com/Quyzi/gpt/ptype"
)

// Disk binds a device, a logical block size, a validated pair of headers,
// and the partition-entry mapping, mediating every mutation and the
// eventual write-back.
type Disk struct {
	device backend.Device
	lbs    LogicalBlockSize

	primary *header.Header
	backup  *header.Header

	activeIsPrimary bool

	parts map[uint32]*part.Entry

	mbr *mbr.ProtectiveMBR

	mbrDirty     bool
	primaryDirty bool
	backupDirty  bool

	writable             bool
	readOnlyBackup       bool
	changePartitionCount bool
	preserveBootcode     bool
	openedNumParts       uint32

	registry *ptype.Registry
}

// Primary returns the primary header as currently understood in memory.
func (d *Disk) Primary() *header.Header { return d.primary }

// Backup returns the backup header as currently understood in memory.
func (d *Disk) Backup() *header.Header { return d.backup }

// Active returns whichever of Primary/Backup was chosen as authoritative
// at open time (or, for a freshly created disk, the primary).
func (d *Disk) Active() *header.Header {
	if d.activeIsPrimary {
		return d.primary
	}
	return d.backup
}

// LogicalBlockSize returns the LBS this view addresses the device with.
func (d *Disk) LogicalBlockSize() LogicalBlockSize { return d.lbs }

// DiskGUID returns the disk-wide GUID from the active header.
func (d *Disk) DiskGUID() uuid.UUID { return d.Active().DiskGUID }

// UpdateDiskGUID replaces the disk GUID on both in-memory headers. Takes
// effect on the next Write.
func (d *Disk) UpdateDiskGUID(id uuid.UUID) {
	d.primary.DiskGUID = id
	d.backup.DiskGUID = id
}

// Partitions returns the live partition mapping, keyed by 1-based slot
// index. The returned map is a copy; mutating it does not affect the
// Disk — use the mutation methods instead.
func (d *Disk) Partitions() map[uint32]*part.Entry {
	out := make(map[uint32]*part.Entry, len(d.parts))
	for k, v := range d.parts {
		cp := *v
		out[k] = &cp
	}
	return out
}

// TakePartitions removes and returns every live partition, leaving the
// view's map empty. Subject to invariant recheck on the next mutation.
func (d *Disk) TakePartitions() map[uint32]*part.Entry {
	out := d.parts
	d.parts = make(map[uint32]*part.Entry)
	return out
}

// UpdatePartitions wholesale-replaces the partition mapping, after
// rechecking every invariant §4.7 requires.
func (d *Disk) UpdatePartitions(m map[uint32]*part.Entry) error {
	if err := checkInvariants(m, d.Active(), d.openedOrCurrentNumParts()); err != nil {
		return err
	}
	copyM := make(map[uint32]*part.Entry, len(m))
	for k, v := range m {
		cp := *v
		copyM[k] = &cp
	}
	d.parts = copyM
	return nil
}

// TakeDevice surrenders the underlying device back to the caller. The
// Disk must not be used again afterward.
func (d *Disk) TakeDevice() backend.Device {
	dev := d.device
	d.device = nil
	return dev
}

// PartitionDevice returns a backend.Device bounded to the byte range of
// the live partition at index, for callers that want to read or write its
// raw contents without this library interpreting them.
func (d *Disk) PartitionDevice(index uint32) (backend.Device, error) {
	e, ok := d.parts[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrNoSuchPartition, index)
	}
	off := int64(e.FirstLBA) * int64(d.lbs)
	length := int64(e.SectorsLen()) * int64(d.lbs)
	return backend.NewSub(d.device, off, length), nil
}

// ReReadPartitionTable asks the kernel to reload the partition table on a
// live Linux block device after a successful Write; a no-op on a disk
// image file or non-Linux build.
func (d *Disk) ReReadPartitionTable() error {
	return backend.ReReadPartitionTableOn(d.device)
}

// PartitionType looks up the well-known type catalog entry for the live
// partition at index, via the registry this view was opened with.
func (d *Disk) PartitionType(index uint32) (ptype.Type, error) {
	e, ok := d.parts[index]
	if !ok {
		return ptype.Type{}, fmt.Errorf("%w: index %d", ErrNoSuchPartition, index)
	}
	return d.registry.Lookup(e.TypeGUID), nil
}

// String renders a one-line human-readable summary.
func (d *Disk) String() string {
	return fmt.Sprintf("gpt disk: %s, %d live partitions, lbs=%d", d.DiskGUID(), len(d.parts), d.lbs)
}

func (d *Disk) openedOrCurrentNumParts() uint32 {
	if d.changePartitionCount {
		return d.primary.NumParts
	}
	return d.openedNumParts
}

func logFields(d *Disk) logrus.Fields {
	return logrus.Fields{
		"disk_guid": d.DiskGUID(),
		"num_parts": d.Active().NumParts,
		"lbs":       d.lbs,
	}
}

// readProtectiveMBR reads and parses LBA 0.
func readProtectiveMBR(dev backend.Device, totalLBA uint64) (*mbr.ProtectiveMBR, bool, error) {
	buf := make([]byte, mbr.Size)
	if _, err := dev.ReadAt(buf, 0); err != nil {
		return nil, true, fmt.Errorf("gpt: reading LBA 0: %w", err)
	}
	m, err := mbr.Parse(buf)
	if err != nil {
		return nil, true, err
	}
	return m, false, nil
}

// readHeaderAt reads one LBS-sized block at lba and parses it as a GPT
// header expected to self-identify as expectedLBA.
func readHeaderAt(dev backend.Device, lbs LogicalBlockSize, lba, expectedLBA uint64) (*header.Header, error) {
	buf := make([]byte, lbs)
	if _, err := dev.ReadAt(buf, int64(lba)*int64(lbs)); err != nil {
		return nil, fmt.Errorf("gpt: reading LBA %d: %w", lba, err)
	}
	return header.Parse(buf, expectedLBA)
}

// resolveHeaders implements the §4.6 decision table.
func resolveHeaders(primary *header.Header, primaryErr error, backup *header.Header, backupErr error, onlyValid bool) (authoritative *header.Header, primaryDirty, backupDirty bool, err error) {
	primaryOK := primaryErr == nil
	backupOK := backupErr == nil

	switch {
	case primaryOK && backupOK:
		if primary.ConsistentWith(backup) {
			return primary, false, false, nil
		}
		if onlyValid {
			Log.Error(ErrHeadersDisagree.Error())
			return nil, false, false, ErrHeadersDisagree
		}
		Log.Warn("primary and backup headers disagree; preferring primary and flagging backup dirty")
		return primary, false, true, nil
	case primaryOK && !backupOK:
		if onlyValid {
			Log.WithFields(map[string]interface{}{"backup_err": backupErr}).Error(ErrBackupInvalid.Error())
			return nil, false, false, fmt.Errorf("%w: %v", ErrBackupInvalid, backupErr)
		}
		Log.WithFields(map[string]interface{}{"backup_err": backupErr}).Warn("backup header invalid; preferring primary and flagging backup dirty")
		return primary, false, true, nil
	case !primaryOK && backupOK:
		if onlyValid {
			Log.WithFields(map[string]interface{}{"primary_err": primaryErr}).Error(ErrPrimaryInvalid.Error())
			return nil, false, false, fmt.Errorf("%w: %v", ErrPrimaryInvalid, primaryErr)
		}
		Log.WithFields(map[string]interface{}{"primary_err": primaryErr}).Warn("primary header invalid; preferring backup and flagging primary dirty")
		return backup, true, false, nil
	default:
		Log.WithFields(map[string]interface{}{"primary_err": primaryErr, "backup_err": backupErr}).Error(ErrNoValidHeaders.Error())
		return nil, false, false, fmt.Errorf("%w: primary: %v; backup: %v", ErrNoValidHeaders, primaryErr, backupErr)
	}
}

// readEntryArray reads and validates the entry array the authoritative
// header points to, returning the live (non-zero type GUID) entries keyed
// by 1-based slot index.
func readEntryArray(dev backend.Device, lbs LogicalBlockSize, h *header.Header, _ *ptype.Registry) (map[uint32]*part.Entry, error) {
	n := int(h.NumParts) * int(h.PartSize)
	buf := make([]byte, n)
	if _, err := dev.ReadAt(buf, int64(h.PartStart)*int64(lbs)); err != nil {
		return nil, fmt.Errorf("gpt: reading entry array at LBA %d: %w", h.PartStart, err)
	}
	if crc := header.ComputePartsCRC(buf, h.NumParts, h.PartSize); crc != h.CRC32Parts {
		return nil, header.BadCRCError{Stored: h.CRC32Parts, Computed: crc}
	}
	out := make(map[uint32]*part.Entry)
	for i := uint32(0); i < h.NumParts; i++ {
		off := int(i) * int(h.PartSize)
		e, err := part.Decode(buf[off : off+int(h.PartSize)])
		if err != nil {
			return nil, fmt.Errorf("gpt: decoding entry %d: %w", i+1, err)
		}
		if e != nil {
			out[i+1] = e
		}
	}
	return out, nil
}
