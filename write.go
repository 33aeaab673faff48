package gpt

import (
	"fmt"
	"sort"

	"github.com/Quyzi/gpt/header"
	"github.com/Quyzi/gpt/mbr"
	"github.com/Quyzi/gpt/part"
)

// Write persists the in-memory view: it builds a fresh entry array,
// recomputes both headers' CRCs, and writes backup array → backup header
// → primary array → primary header → protective MBR (if dirty), flushing
// once at the end. If the process is interrupted after the backup array
// write, the primary is still intact and authoritative; if interrupted
// between the primary array and primary header writes, the backup header
// and array are already current while the old primary header's
// crc32_parts no longer matches the primary array; a subsequent Open then
// fails, rejecting the disagreeing headers under OnlyValidHeaders and
// otherwise preferring the primary header and failing its entry-array CRC
// check.
//
// Fails with ErrReadOnly if this view was not opened writable. If
// ChangePartitionCount is false, growing NumParts beyond the value read at
// open time fails with ErrCountImmutable.
func (d *Disk) Write() (primary, backup *header.Header, err error) {
	if !d.writable {
		return nil, nil, ErrReadOnly
	}

	numParts := d.primary.NumParts
	if !d.changePartitionCount && numParts != d.openedNumParts {
		return nil, nil, ErrCountImmutable
	}

	if err := checkInvariants(d.parts, d.Active(), numParts); err != nil {
		return nil, nil, err
	}

	entryBuf, err := buildEntryArray(d.parts, numParts, d.primary.PartSize)
	if err != nil {
		return nil, nil, fmt.Errorf("gpt: encoding entry array: %w", err)
	}
	partsCRC := header.ComputePartsCRC(entryBuf, numParts, d.primary.PartSize)

	newPrimary := *d.primary
	newPrimary.NumParts = numParts
	newPrimary.CRC32Parts = partsCRC
	newPrimary.CurrentLBA = 1
	newPrimary.BackupLBA = d.backup.CurrentLBA
	newPrimary.PartStart = 2

	newBackup := *d.backup
	newBackup.NumParts = numParts
	newBackup.CRC32Parts = partsCRC
	newBackup.CurrentLBA = newPrimary.BackupLBA
	newBackup.BackupLBA = 1
	backupArrayLBs := divCeil(uint64(numParts)*uint64(newBackup.PartSize), uint64(d.lbs))
	newBackup.PartStart = newBackup.CurrentLBA - backupArrayLBs

	if d.readOnlyBackup {
		if !d.backup.ConsistentWith(&newPrimary) {
			return nil, nil, ErrHeadersDisagree
		}
	} else {
		if err := d.writeAt(int64(newBackup.PartStart)*int64(d.lbs), entryBuf); err != nil {
			return nil, nil, fmt.Errorf("gpt: writing backup entry array: %w", err)
		}
		backupBuf, err := newBackup.Encode(int(d.lbs))
		if err != nil {
			return nil, nil, fmt.Errorf("gpt: encoding backup header: %w", err)
		}
		if err := d.writeAt(int64(newBackup.CurrentLBA)*int64(d.lbs), backupBuf); err != nil {
			return nil, nil, fmt.Errorf("gpt: writing backup header: %w", err)
		}
	}

	if err := d.writeAt(int64(newPrimary.PartStart)*int64(d.lbs), entryBuf); err != nil {
		return nil, nil, fmt.Errorf("gpt: writing primary entry array: %w", err)
	}
	primaryBuf, err := newPrimary.Encode(int(d.lbs))
	if err != nil {
		return nil, nil, fmt.Errorf("gpt: encoding primary header: %w", err)
	}
	if err := d.writeAt(int64(newPrimary.CurrentLBA)*int64(d.lbs), primaryBuf); err != nil {
		return nil, nil, fmt.Errorf("gpt: writing primary header: %w", err)
	}

	if d.mbrDirty {
		if d.preserveBootcode {
			if err := d.writeAt(mbr.ConservativeUpdateOffset, d.mbr.ConservativeUpdate()); err != nil {
				return nil, nil, fmt.Errorf("gpt: writing protective MBR (preserving bootcode): %w", err)
			}
		} else if err := d.writeAt(0, d.mbr.Encode()); err != nil {
			return nil, nil, fmt.Errorf("gpt: writing protective MBR: %w", err)
		}
	}

	if err := d.device.Sync(); err != nil {
		return nil, nil, fmt.Errorf("gpt: flushing device: %w", err)
	}

	d.primary = &newPrimary
	d.backup = &newBackup
	d.mbrDirty = false
	d.primaryDirty = false
	d.backupDirty = false
	d.openedNumParts = numParts

	Log.WithFields(logFields(d)).Debug("wrote gpt disk view")
	return d.primary, d.backup, nil
}

func (d *Disk) writeAt(off int64, buf []byte) error {
	_, err := d.device.WriteAt(buf, off)
	return err
}

// buildEntryArray renders every live entry into a zeroed buffer of
// numParts*partSize bytes at its slot offset. An entry whose name no
// longer fits the field width (checkInvariants should have already
// rejected it before this point) fails the whole build rather than
// being silently dropped.
func buildEntryArray(parts map[uint32]*part.Entry, numParts, partSize uint32) ([]byte, error) {
	buf := make([]byte, int(numParts)*int(partSize))
	indices := make([]uint32, 0, len(parts))
	for idx := range parts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	for _, idx := range indices {
		if idx == 0 || idx > numParts {
			continue
		}
		off := int(idx-1) * int(partSize)
		if err := parts[idx].Encode(buf[off : off+int(partSize)]); err != nil {
			return nil, fmt.Errorf("gpt: encoding entry %d: %w", idx, err)
		}
	}
	return buf, nil
}
