package gpt

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Quyzi/gpt/backend"
	"github.com/Quyzi/gpt/header"
	"github.com/Quyzi/gpt/mbr"
	"github.com/Quyzi/gpt/part"
	"github.com/Quyzi/gpt/ptype"
)

// DefaultAlignment is the default partition start-LBA alignment, in
// sectors, used by AddPartition when the caller passes zero.
const DefaultAlignment = 2048

// Config collects the policy flags that govern how Open (and
// CreateFromDevice) builds a Disk from a device. The zero value is
// read-only, requires neither header to be pre-validated beyond what
// Open's decision table demands, and pins the partition count read at
// open time.
type Config struct {
	writable             bool
	readOnlyBackup       bool
	onlyValidHeaders     bool
	changePartitionCount bool
	requireMBR           bool
	preserveBootcode     bool
	lbsOverride          LogicalBlockSize
	registry             *ptype.Registry
}

// NewConfig returns a Config with every policy flag at its default
// (read-only, no overrides).
func NewConfig() *Config {
	return &Config{registry: ptype.Default()}
}

// Writable permits mutation and Write.
func (c *Config) Writable(v bool) *Config { c.writable = v; return c }

// ReadOnlyBackup skips writing the backup header/array on Write, only
// checking the backup is still consistent with what would have been
// written.
func (c *Config) ReadOnlyBackup(v bool) *Config { c.readOnlyBackup = v; return c }

// OnlyValidHeaders requires both primary and backup headers to be valid
// and mutually consistent at open time, per the §4.6 decision table.
func (c *Config) OnlyValidHeaders(v bool) *Config { c.onlyValidHeaders = v; return c }

// ChangePartitionCount permits num_parts to differ from the value read at
// open time; otherwise attempts to grow it fail with ErrCountImmutable.
func (c *Config) ChangePartitionCount(v bool) *Config { c.changePartitionCount = v; return c }

// RequireMBR fails Open with ErrInvalidMBR if LBA 0 is not a well-formed
// protective MBR, instead of merely flagging it dirty for rewrite.
func (c *Config) RequireMBR(v bool) *Config { c.requireMBR = v; return c }

// PreserveBootcode makes Write rewrite LBA 0 via the protective MBR's
// ConservativeUpdate (partition records and signature only) instead of a
// full Encode, leaving any existing bootcode and disk signature untouched.
func (c *Config) PreserveBootcode(v bool) *Config { c.preserveBootcode = v; return c }

// LogicalBlockSizeOverride forces lbs instead of probing device metadata.
func (c *Config) LogicalBlockSizeOverride(lbs LogicalBlockSize) *Config {
	c.lbsOverride = lbs
	return c
}

// Registry overrides the partition type registry used for lookups (see
// ptype.Registry.Register for extending the catalog before opening).
func (c *Config) Registry(r *ptype.Registry) *Config { c.registry = r; return c }

func (c *Config) resolveLBS(dev backend.Device) (LogicalBlockSize, error) {
	if c.lbsOverride.Valid() {
		return c.lbsOverride, nil
	}
	if n, err := backend.DetectLogicalBlockSize(dev); err == nil && LogicalBlockSize(n).Valid() {
		return LogicalBlockSize(n), nil
	}
	return LBS512, nil
}

// Open reads LBA 0, the primary header, and the backup header from dev,
// applies the §4.6 decision table to pick the authoritative header, and
// returns a bound Disk. See package doc for the write-back protocol.
func (c *Config) Open(dev backend.Device) (*Disk, error) {
	lbs, err := c.resolveLBS(dev)
	if err != nil {
		return nil, err
	}
	size, err := dev.Size()
	if err != nil {
		return nil, fmt.Errorf("gpt: querying device size: %w", err)
	}
	lastLBA := uint64(size)/uint64(lbs) - 1

	protMBR, mbrDirty, err := readProtectiveMBR(dev, uint64(size)/uint64(lbs))
	if err != nil {
		if c.requireMBR {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMBR, err)
		}
		Log.WithFields(map[string]interface{}{"mbr_err": err}).Warn("LBA 0 is not a valid protective MBR; will rewrite on next write")
		fresh := mbr.New(uint64(size) / uint64(lbs))
		if c.preserveBootcode {
			raw := make([]byte, mbr.Size)
			if _, rerr := dev.ReadAt(raw, 0); rerr == nil {
				copy(fresh.Bootcode[:], raw[0:440])
				copy(fresh.DiskSignature[:], raw[440:444])
			}
		}
		protMBR = fresh
		mbrDirty = true
	}

	primary, primaryErr := readHeaderAt(dev, lbs, 1, 1)
	backup, backupErr := readHeaderAt(dev, lbs, lastLBA, lastLBA)

	authoritative, primaryDirty, backupDirty, err := resolveHeaders(primary, primaryErr, backup, backupErr, c.onlyValidHeaders)
	if err != nil {
		return nil, err
	}

	parts, err := readEntryArray(dev, lbs, authoritative, c.registry)
	if err != nil {
		return nil, err
	}

	d := &Disk{
		device:               dev,
		lbs:                  lbs,
		primary:              primary,
		backup:               backup,
		parts:                parts,
		mbr:                  protMBR,
		mbrDirty:             mbrDirty,
		primaryDirty:         primaryDirty,
		backupDirty:          backupDirty,
		writable:             c.writable,
		readOnlyBackup:       c.readOnlyBackup,
		changePartitionCount: c.changePartitionCount,
		preserveBootcode:     c.preserveBootcode,
		openedNumParts:       authoritative.NumParts,
		registry:             c.registry,
	}
	if authoritative == primary {
		d.activeIsPrimary = true
	}
	Log.WithFields(logFields(d)).Debug("opened gpt disk view")
	return d, nil
}

// CreateFromDevice builds a Disk over dev without reading any existing
// metadata: a fresh empty entry map and a builder-derived header pair.
// dev's current size determines the backup LBA and usable range.
func (c *Config) CreateFromDevice(dev backend.Device, diskGUID uuid.UUID) (*Disk, error) {
	lbs, err := c.resolveLBS(dev)
	if err != nil {
		return nil, err
	}
	size, err := dev.Size()
	if err != nil {
		return nil, fmt.Errorf("gpt: querying device size: %w", err)
	}
	totalLBA := uint64(size) / uint64(lbs)
	if totalLBA < 3 {
		return nil, fmt.Errorf("gpt: device of %d LBAs is too small for a GPT", totalLBA)
	}
	lastLBA := totalLBA - 1

	b := header.NewBuilder().BackupLBA(lastLBA)
	if diskGUID != uuid.Nil {
		b.DiskGUID(diskGUID)
	}
	primary, err := b.Build(int(lbs))
	if err != nil {
		return nil, fmt.Errorf("gpt: building primary header: %w", err)
	}
	backupHdr, err := header.FromHeader(primary).Primary(false).Build(int(lbs))
	if err != nil {
		return nil, fmt.Errorf("gpt: building backup header: %w", err)
	}

	d := &Disk{
		device:               dev,
		lbs:                  lbs,
		primary:              primary,
		backup:               backupHdr,
		parts:                make(map[uint32]*part.Entry),
		mbr:                  mbr.New(totalLBA),
		mbrDirty:             true,
		primaryDirty:         true,
		backupDirty:          true,
		writable:             c.writable,
		readOnlyBackup:       c.readOnlyBackup,
		changePartitionCount: true,
		preserveBootcode:     c.preserveBootcode,
		openedNumParts:       primary.NumParts,
		activeIsPrimary:      true,
		registry:             c.registry,
	}
	Log.WithFields(logFields(d)).Debug("created fresh gpt disk view")
	return d, nil
}
