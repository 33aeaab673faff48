package gpt

import (
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/Quyzi/gpt/guid"
	"github.com/Quyzi/gpt/header"
	"github.com/Quyzi/gpt/part"
	"github.com/Quyzi/gpt/util/bitmap"
)

// AddPartition computes sectors_needed = ceil(sizeBytes/lbs), scans free
// ranges between first_usable_lba and last_usable_lba for the lowest
// first-fit slot respecting partAlignment (sectors; 0 means
// DefaultAlignment), allocates the lowest free slot index, generates a
// fresh unique GUID, and inserts the entry. Returns the new slot index.
func (d *Disk) AddPartition(name string, sizeBytes uint64, typeGUID uuid.UUID, flags uint64, partAlignment uint64) (uint32, error) {
	if partAlignment == 0 {
		partAlignment = DefaultAlignment
	}
	sectorsNeeded := divCeil(sizeBytes, uint64(d.lbs))
	if sectorsNeeded == 0 {
		return 0, ErrTooSmall
	}

	first, ok := d.findFreeFirstFit(sectorsNeeded, partAlignment)
	if !ok {
		Log.WithFields(map[string]interface{}{"sectors_needed": sectorsNeeded, "align": partAlignment}).Warn(ErrNoSpace.Error())
		return 0, ErrNoSpace
	}
	last := first + sectorsNeeded - 1

	return d.insertPartition(name, first, last, typeGUID, flags)
}

// AddPartitionAt is the caller-chosen-start-LBA variant of AddPartition.
// Fails with OverlapError if the requested range intersects any live
// partition or escapes [first_usable_lba, last_usable_lba].
func (d *Disk) AddPartitionAt(name string, startLBA, sizeBytes uint64, typeGUID uuid.UUID, flags uint64) (uint32, error) {
	sectorsNeeded := divCeil(sizeBytes, uint64(d.lbs))
	if sectorsNeeded == 0 {
		return 0, ErrTooSmall
	}
	last := startLBA + sectorsNeeded - 1

	h := d.Active()
	if startLBA < h.FirstUsableLBA || last > h.LastUsableLBA {
		err := OverlapError{RequestedFirst: startLBA, RequestedLast: last}
		Log.WithFields(map[string]interface{}{"first_lba": startLBA, "last_lba": last}).Warn(err.Error())
		return 0, err
	}
	for idx, e := range d.parts {
		if rangesOverlap(startLBA, last, e.FirstLBA, e.LastLBA) {
			err := OverlapError{
				RequestedFirst: startLBA, RequestedLast: last,
				ExistingIndex: idx, ExistingFirst: e.FirstLBA, ExistingLast: e.LastLBA,
			}
			Log.WithFields(map[string]interface{}{"first_lba": startLBA, "last_lba": last, "existing_slot": idx}).Warn(err.Error())
			return 0, err
		}
	}

	return d.insertPartition(name, startLBA, last, typeGUID, flags)
}

func (d *Disk) insertPartition(name string, first, last uint64, typeGUID uuid.UUID, flags uint64) (uint32, error) {
	uniqueID, err := guid.New()
	if err != nil {
		return 0, fmt.Errorf("gpt: generating unique guid: %w", err)
	}
	e := &part.Entry{
		TypeGUID:   typeGUID,
		UniqueGUID: uniqueID,
		FirstLBA:   first,
		LastLBA:    last,
		Flags:      flags,
		Name:       name,
	}
	idx := d.lowestFreeIndex()
	if idx == 0 {
		return 0, fmt.Errorf("gpt: entry array has no free slot (all %d occupied)", d.openedOrCurrentNumParts())
	}

	trial := d.Partitions()
	trial[idx] = e
	if err := checkInvariants(trial, d.Active(), d.openedOrCurrentNumParts()); err != nil {
		return 0, err
	}

	d.parts[idx] = e
	Log.WithFields(map[string]interface{}{"slot": idx, "first_lba": first, "last_lba": last}).Trace("added partition")
	return idx, nil
}

// RemovePartition clears the slot at index, returning the removed entry.
// Fails with ErrNoSuchPartition if the slot is already empty.
func (d *Disk) RemovePartition(index uint32) (*part.Entry, error) {
	e, ok := d.parts[index]
	if !ok {
		err := fmt.Errorf("%w: index %d", ErrNoSuchPartition, index)
		Log.WithFields(map[string]interface{}{"slot": index}).Warn(err.Error())
		return nil, err
	}
	delete(d.parts, index)
	Log.WithFields(map[string]interface{}{"slot": index}).Trace("removed partition")
	return e, nil
}

// RemovePartitionByGUID finds the unique live slot whose unique GUID
// matches id and removes it. Fails with ErrNoSuchPartition if none match,
// or ErrAmbiguousGUID if more than one does (which indicates the
// uniqueness invariant has already been violated).
func (d *Disk) RemovePartitionByGUID(id uuid.UUID) (*part.Entry, error) {
	var foundIdx uint32
	var found *part.Entry
	matches := 0
	for idx, e := range d.parts {
		if e.UniqueGUID == id {
			foundIdx, found = idx, e
			matches++
		}
	}
	switch matches {
	case 0:
		err := fmt.Errorf("%w: guid %s", ErrNoSuchPartition, id)
		Log.WithFields(map[string]interface{}{"guid": id}).Warn(err.Error())
		return nil, err
	case 1:
		delete(d.parts, foundIdx)
		return found, nil
	default:
		Log.WithFields(map[string]interface{}{"guid": id, "matches": matches}).Error(ErrAmbiguousGUID.Error())
		return nil, ErrAmbiguousGUID
	}
}

// CalculateAlignment returns the largest power-of-two sector count not
// exceeding 1 MiB worth of sectors that divides every live partition's
// start LBA, or DefaultAlignment if there are no live partitions.
func (d *Disk) CalculateAlignment() uint64 {
	maxAlign := uint64(1024 * 1024) // 1 MiB in bytes; divided by lbs below
	maxSectors := maxAlign / uint64(d.lbs)
	if maxSectors == 0 {
		maxSectors = 1
	}
	align := maxSectors
	for align > 1 {
		ok := true
		for _, e := range d.parts {
			if e.FirstLBA%align != 0 {
				ok = false
				break
			}
		}
		if ok {
			break
		}
		align /= 2
	}
	if len(d.parts) == 0 {
		return DefaultAlignment
	}
	return align
}

// findFreeFirstFit scans the usable LBA range for the first free span of
// at least sectorsNeeded sectors whose start, rounded up to align, still
// fits within the span.
func (d *Disk) findFreeFirstFit(sectorsNeeded, align uint64) (uint64, bool) {
	h := d.Active()
	firstUsable, lastUsable := h.FirstUsableLBA, h.LastUsableLBA
	if firstUsable > lastUsable {
		return 0, false
	}
	span := lastUsable - firstUsable + 1

	bm := bitmap.NewLBABitmap(span)
	for _, e := range d.parts {
		lo, hi := e.FirstLBA, e.LastLBA
		if lo < firstUsable {
			lo = firstUsable
		}
		if hi > lastUsable {
			hi = lastUsable
		}
		if lo > hi {
			continue
		}
		_ = bm.MarkRange(lo-firstUsable, hi-firstUsable)
	}

	ranges := bm.FreeRanges()
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].First < ranges[j].First })
	for _, r := range ranges {
		absFirst := r.First + firstUsable
		aligned := alignUp(absFirst, align)
		absLast := r.Last + firstUsable
		if aligned+sectorsNeeded-1 <= absLast {
			return aligned, true
		}
	}
	return 0, false
}

func (d *Disk) lowestFreeIndex() uint32 {
	max := d.openedOrCurrentNumParts()
	for i := uint32(1); i <= max; i++ {
		if _, ok := d.parts[i]; !ok {
			return i
		}
	}
	return 0
}

func rangesOverlap(aFirst, aLast, bFirst, bLast uint64) bool {
	return aFirst <= bLast && bFirst <= aLast
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

func divCeil(lhs, rhs uint64) uint64 {
	if rhs == 0 {
		return 0
	}
	return (lhs + rhs - 1) / rhs
}

// checkInvariants rechecks every invariant §4.7 requires after a
// mutation: no two live entries overlap, all live entries fall within
// the active header's usable bounds, all unique GUIDs are distinct, and
// the live count does not exceed numParts.
func checkInvariants(m map[uint32]*part.Entry, h *header.Header, numParts uint32) error {
	if uint32(len(m)) > numParts {
		return fmt.Errorf("gpt: %d live partitions exceeds entry count %d", len(m), numParts)
	}

	indices := make([]uint32, 0, len(m))
	for idx := range m {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	seenGUID := make(map[uuid.UUID]uint32, len(m))
	for _, idx := range indices {
		e := m[idx]
		if n := len(utf16.Encode([]rune(e.Name))); n > part.NameMaxCodeUnits {
			err := NameTooLongError{Name: e.Name, Length: n}
			Log.WithFields(map[string]interface{}{"slot": idx, "length": n}).Warn(err.Error())
			return err
		}
		if e.FirstLBA == 0 {
			err := InvalidEntryError{Index: idx, Reason: "first_lba must be non-zero"}
			Log.WithFields(map[string]interface{}{"slot": idx}).Warn(err.Error())
			return err
		}
		if e.FirstLBA > e.LastLBA {
			err := InvalidEntryError{Index: idx, Reason: "first_lba exceeds last_lba"}
			Log.WithFields(map[string]interface{}{"slot": idx}).Warn(err.Error())
			return err
		}
		if e.FirstLBA < h.FirstUsableLBA || e.LastLBA > h.LastUsableLBA {
			err := OutOfUsableRangeError{
				First: e.FirstLBA, Last: e.LastLBA,
				FirstUsable: h.FirstUsableLBA, LastUsable: h.LastUsableLBA,
			}
			Log.WithFields(map[string]interface{}{"slot": idx}).Warn(err.Error())
			return err
		}
		if e.UniqueGUID == guid.Nil {
			err := InvalidEntryError{Index: idx, Reason: "unique guid must be non-zero"}
			Log.WithFields(map[string]interface{}{"slot": idx}).Warn(err.Error())
			return err
		}
		if other, dup := seenGUID[e.UniqueGUID]; dup {
			err := fmt.Errorf("gpt: slots %d and %d share unique guid %s", other, idx, e.UniqueGUID)
			Log.WithFields(map[string]interface{}{"slot": idx, "other_slot": other}).Warn(err.Error())
			return err
		}
		seenGUID[e.UniqueGUID] = idx

		for _, other := range indices {
			if other <= idx {
				continue
			}
			o := m[other]
			if rangesOverlap(e.FirstLBA, e.LastLBA, o.FirstLBA, o.LastLBA) {
				err := OverlapError{
					RequestedFirst: e.FirstLBA, RequestedLast: e.LastLBA,
					ExistingIndex: other, ExistingFirst: o.FirstLBA, ExistingLast: o.LastLBA,
				}
				Log.WithFields(map[string]interface{}{"slot": idx, "other_slot": other}).Warn(err.Error())
				return err
			}
		}
	}
	return nil
}
