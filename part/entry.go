// Package part implements the 128-byte GPT partition entry record: decode
// and encode of a single slot in the entry array.
package part

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/Quyzi/gpt/guid"
)

// Size is the fixed on-disk width of one partition entry.
const Size = 128

// NameFieldBytes is the width of the name field; NameMaxCodeUnits is its
// capacity in UTF-16 code units.
const (
	NameFieldBytes   = 72
	NameMaxCodeUnits = 36
)

// Entry is a single GPT partition descriptor.
type Entry struct {
	TypeGUID   uuid.UUID
	UniqueGUID uuid.UUID
	FirstLBA   uint64
	LastLBA    uint64
	Flags      uint64
	Name       string
}

// NameTooLongError reports a name exceeding NameMaxCodeUnits UTF-16 code
// units.
type NameTooLongError struct {
	Name   string
	Length int
}

func (e NameTooLongError) Error() string {
	return fmt.Sprintf("part: name %q is %d UTF-16 code units, maximum is %d", e.Name, e.Length, NameMaxCodeUnits)
}

// InvalidEntryError reports a slot whose type GUID is non-zero but whose
// remaining fields do not describe a coherent partition.
type InvalidEntryError struct {
	Reason string
}

func (e InvalidEntryError) Error() string { return "part: invalid entry: " + e.Reason }

// IsLive reports whether buf[:Size] describes an occupied slot (non-zero
// type GUID), without fully decoding it.
func IsLive(buf []byte) bool {
	if len(buf) < 16 {
		return false
	}
	for _, b := range buf[:16] {
		if b != 0 {
			return true
		}
	}
	return false
}

// Decode reads one 128-byte entry. An all-zero type GUID decodes to
// (nil, nil) to signal an unused slot; callers should check for a nil
// Entry rather than treating it as an error.
func Decode(buf []byte) (*Entry, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("part: need %d bytes, got %d", Size, len(buf))
	}
	typeGUID, err := guid.Decode(buf[0:16])
	if err != nil {
		return nil, fmt.Errorf("part: type guid: %w", err)
	}
	if typeGUID == guid.Nil {
		return nil, nil
	}
	uniqueGUID, err := guid.Decode(buf[16:32])
	if err != nil {
		return nil, fmt.Errorf("part: unique guid: %w", err)
	}
	firstLBA := binary.LittleEndian.Uint64(buf[32:40])
	lastLBA := binary.LittleEndian.Uint64(buf[40:48])
	flags := binary.LittleEndian.Uint64(buf[48:56])
	name := decodeName(buf[56 : 56+NameFieldBytes])

	if uniqueGUID == guid.Nil && firstLBA == 0 && lastLBA == 0 && flags == 0 && name == "" {
		return nil, InvalidEntryError{Reason: "non-zero type guid with an otherwise all-zero record"}
	}

	return &Entry{
		TypeGUID:   typeGUID,
		UniqueGUID: uniqueGUID,
		FirstLBA:   firstLBA,
		LastLBA:    lastLBA,
		Flags:      flags,
		Name:       name,
	}, nil
}

// Encode writes e into buf[:Size]. buf must be at least Size bytes.
func (e *Entry) Encode(buf []byte) error {
	if len(buf) < Size {
		return fmt.Errorf("part: need %d bytes, got %d", Size, len(buf))
	}
	for i := range buf[:Size] {
		buf[i] = 0
	}
	if err := guid.Encode(e.TypeGUID, buf[0:16]); err != nil {
		return err
	}
	if err := guid.Encode(e.UniqueGUID, buf[16:32]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf[32:40], e.FirstLBA)
	binary.LittleEndian.PutUint64(buf[40:48], e.LastLBA)
	binary.LittleEndian.PutUint64(buf[48:56], e.Flags)
	units := utf16.Encode([]rune(e.Name))
	if len(units) > NameMaxCodeUnits {
		return NameTooLongError{Name: e.Name, Length: len(units)}
	}
	nameBuf := buf[56 : 56+NameFieldBytes]
	for i, u := range units {
		binary.LittleEndian.PutUint16(nameBuf[i*2:i*2+2], u)
	}
	return nil
}

// SectorsLen returns last_lba - first_lba + 1.
func (e *Entry) SectorsLen() uint64 {
	return e.LastLBA - e.FirstLBA + 1
}

// BytesLen returns SectorsLen() * lbs.
func (e *Entry) BytesLen(lbs uint64) uint64 {
	return e.SectorsLen() * lbs
}

// String renders a one-line human-readable summary.
func (e *Entry) String() string {
	return fmt.Sprintf("%s type=%s range=[%d,%d] flags=0x%x", e.Name, e.TypeGUID, e.FirstLBA, e.LastLBA, e.Flags)
}

func decodeName(buf []byte) string {
	units := make([]uint16, 0, NameMaxCodeUnits)
	for i := 0; i+1 < len(buf) && i/2 < NameMaxCodeUnits; i += 2 {
		u := binary.LittleEndian.Uint16(buf[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
