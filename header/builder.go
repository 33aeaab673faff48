package header

import (
	"errors"

	"github.com/google/uuid"
)

// MinNumParts is the smallest entry count the builder will produce,
// matching the common 128-entry GPT table.
const MinNumParts = 128

// ErrMissingBackupLBA is returned by Build when no backup LBA has been set
// (or it precedes the primary LBA).
var ErrMissingBackupLBA = errors.New("header: backup_lba must be set and must not precede the primary LBA")

// ErrBackupLBATooEarly is returned by Build when the backup LBA leaves no
// room for the entry array, or the computed usable range is empty.
var ErrBackupLBATooEarly = errors.New("header: backup_lba leaves no room for first_usable/last_usable")

// Builder constructs a primary/backup Header pair from a handful of
// required inputs (backup_lba) and optional overrides, applying the same
// usable-range math the UEFI spec requires.
type Builder struct {
	primary    bool
	diskGUID   uuid.UUID
	primaryLBA uint64
	backupLBA  uint64
	firstUsable uint64
	lastUsable  uint64
	numParts   uint32
	partSize   uint32
}

// NewBuilder returns a Builder seeded with a fresh random disk GUID,
// primary LBA 1, 128 entries of 128 bytes each.
func NewBuilder() *Builder {
	id, _ := uuid.NewRandom()
	return &Builder{
		primary:    true,
		diskGUID:   id,
		primaryLBA: 1,
		numParts:   MinNumParts,
		partSize:   128,
	}
}

// FromHeader seeds a Builder from an existing header's values, useful when
// rebuilding the counterpart of a header read from disk.
func FromHeader(h *Header) *Builder {
	primary := h.CurrentLBA < h.BackupLBA
	primaryLBA, backupLBA := h.CurrentLBA, h.BackupLBA
	if !primary {
		primaryLBA, backupLBA = h.BackupLBA, h.CurrentLBA
	}
	return &Builder{
		primary:     primary,
		diskGUID:    h.DiskGUID,
		primaryLBA:  primaryLBA,
		backupLBA:   backupLBA,
		firstUsable: h.FirstUsableLBA,
		lastUsable:  h.LastUsableLBA,
		numParts:    h.NumParts,
		partSize:    h.PartSize,
	}
}

// Primary selects whether Build produces the primary (true) or backup
// (false) header.
func (b *Builder) Primary(primary bool) *Builder { b.primary = primary; return b }

// DiskGUID overrides the auto-generated disk GUID.
func (b *Builder) DiskGUID(id uuid.UUID) *Builder { b.diskGUID = id; return b }

// BackupLBA sets the LBA the backup header resides at (required).
func (b *Builder) BackupLBA(lba uint64) *Builder { b.backupLBA = lba; return b }

// FirstUsable overrides the first usable LBA; it is still raised to the
// minimum the entry array requires if set too low.
func (b *Builder) FirstUsable(lba uint64) *Builder { b.firstUsable = lba; return b }

// LastUsable overrides the last usable LBA; it is still lowered to the
// maximum the backup entry array requires if set too high.
func (b *Builder) LastUsable(lba uint64) *Builder { b.lastUsable = lba; return b }

// NumParts sets the entry count, floored at MinNumParts.
func (b *Builder) NumParts(n uint32) *Builder {
	if n < MinNumParts {
		n = MinNumParts
	}
	b.numParts = n
	return b
}

// PartSize sets the per-entry size in bytes (normally 128).
func (b *Builder) PartSize(n uint32) *Builder { b.partSize = n; return b }

// Build computes first/last usable LBA and part_start per the UEFI
// layout rules and returns a Header ready for Encode. CRC fields are left
// zero; the caller (normally the disk view's write path) fills them in
// once the entry array is finalized.
func (b *Builder) Build(lbs int) (*Header, error) {
	if b.backupLBA < b.primaryLBA {
		return nil, ErrMissingBackupLBA
	}

	currentLBA, backupLBA := b.primaryLBA, b.backupLBA
	if !b.primary {
		currentLBA, backupLBA = b.backupLBA, b.primaryLBA
	}

	partArraySize := uint64(b.numParts) * uint64(b.partSize)
	partArrayLBs := divCeil(partArraySize, uint64(lbs))

	firstUsable := b.firstUsable
	if min := 1 + 1 + partArrayLBs; min > firstUsable {
		firstUsable = min
	}

	if b.backupLBA < partArrayLBs+1 {
		return nil, ErrBackupLBATooEarly
	}
	lastUsableCeiling := b.backupLBA - partArrayLBs - 1
	lastUsable := b.lastUsable
	if lastUsable == 0 || lastUsable > lastUsableCeiling {
		lastUsable = lastUsableCeiling
	}

	if firstUsable > lastUsable {
		return nil, ErrBackupLBATooEarly
	}

	var partStart uint64
	if b.primary {
		partStart = b.primaryLBA + 1
	} else {
		partStart = lastUsable + 1
	}

	return &Header{
		Revision:       Revision10,
		HeaderSize:     Size,
		CurrentLBA:     currentLBA,
		BackupLBA:      backupLBA,
		FirstUsableLBA: firstUsable,
		LastUsableLBA:  lastUsable,
		DiskGUID:       b.diskGUID,
		PartStart:      partStart,
		NumParts:       b.numParts,
		PartSize:       b.partSize,
	}, nil
}

func divCeil(lhs, rhs uint64) uint64 {
	return (lhs + rhs - 1) / rhs
}
