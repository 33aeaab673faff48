// Package header implements the GPT header: parsing, validation, and
// encoding of the 92-byte (GPT 1.0) structure that anchors a GUID
// Partition Table, plus a builder for constructing a fresh primary/backup
// pair.
package header

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/google/uuid"

	"github.com/Quyzi/gpt/guid"
)

// Signature is the fixed 8-byte magic at offset 0 of every GPT header.
var Signature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// Revision10 is the only revision this package understands: GPT 1.0.
const Revision10 = 0x00010000

// Size is the GPT 1.0 header size in bytes, before LBS padding.
const Size = 92

// Header is a single GPT header, primary or backup.
type Header struct {
	Revision        uint32
	HeaderSize      uint32
	HeaderCRC32     uint32
	CurrentLBA      uint64
	BackupLBA       uint64
	FirstUsableLBA  uint64
	LastUsableLBA   uint64
	DiskGUID        uuid.UUID
	PartStart       uint64
	NumParts        uint32
	PartSize        uint32
	CRC32Parts      uint32
}

// BadSignatureError is returned when the 8-byte magic does not read "EFI PART".
type BadSignatureError struct{ Got [8]byte }

func (e BadSignatureError) Error() string {
	return fmt.Sprintf("header: bad signature %q", string(e.Got[:]))
}

// UnsupportedRevisionError is returned for any revision other than 1.0.
type UnsupportedRevisionError struct{ Got uint32 }

func (e UnsupportedRevisionError) Error() string {
	return fmt.Sprintf("header: unsupported revision 0x%08x", e.Got)
}

// BadHeaderSizeError is returned when header_size is outside [92, LBS].
type BadHeaderSizeError struct{ Got uint32 }

func (e BadHeaderSizeError) Error() string {
	return fmt.Sprintf("header: bad header size %d", e.Got)
}

// BadCRCError is returned when the stored header_crc32 does not match the
// CRC recomputed over the header bytes with that field zeroed.
type BadCRCError struct{ Stored, Computed uint32 }

func (e BadCRCError) Error() string {
	return fmt.Sprintf("header: CRC mismatch: stored 0x%08x, computed 0x%08x", e.Stored, e.Computed)
}

// LBAMismatchError is returned when current_lba does not match the LBA the
// header was read from.
type LBAMismatchError struct{ Expected, Got uint64 }

func (e LBAMismatchError) Error() string {
	return fmt.Sprintf("header: current_lba %d does not match expected LBA %d", e.Got, e.Expected)
}

// Parse validates and decodes a GPT header from buf (which must be at
// least Size bytes; trailing LBS padding is ignored) and checks that its
// current_lba field equals expectedLBA.
func Parse(buf []byte, expectedLBA uint64) (*Header, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("header: need at least %d bytes, got %d", Size, len(buf))
	}
	var sig [8]byte
	copy(sig[:], buf[0:8])
	if sig != Signature {
		return nil, BadSignatureError{Got: sig}
	}
	revision := binary.LittleEndian.Uint32(buf[8:12])
	if revision != Revision10 {
		return nil, UnsupportedRevisionError{Got: revision}
	}
	headerSize := binary.LittleEndian.Uint32(buf[12:16])
	if headerSize < Size || int(headerSize) > len(buf) {
		return nil, BadHeaderSizeError{Got: headerSize}
	}
	storedCRC := binary.LittleEndian.Uint32(buf[16:20])
	computed := computeHeaderCRC(buf[:headerSize])
	if storedCRC != computed {
		return nil, BadCRCError{Stored: storedCRC, Computed: computed}
	}

	currentLBA := binary.LittleEndian.Uint64(buf[24:32])
	if currentLBA != expectedLBA {
		return nil, LBAMismatchError{Expected: expectedLBA, Got: currentLBA}
	}

	diskGUID, err := guid.Decode(buf[56:72])
	if err != nil {
		return nil, fmt.Errorf("header: disk guid: %w", err)
	}

	h := &Header{
		Revision:       revision,
		HeaderSize:     headerSize,
		HeaderCRC32:    storedCRC,
		CurrentLBA:     currentLBA,
		BackupLBA:      binary.LittleEndian.Uint64(buf[32:40]),
		FirstUsableLBA: binary.LittleEndian.Uint64(buf[40:48]),
		LastUsableLBA:  binary.LittleEndian.Uint64(buf[48:56]),
		DiskGUID:       diskGUID,
		PartStart:      binary.LittleEndian.Uint64(buf[72:80]),
		NumParts:       binary.LittleEndian.Uint32(buf[80:84]),
		PartSize:       binary.LittleEndian.Uint32(buf[84:88]),
		CRC32Parts:     binary.LittleEndian.Uint32(buf[88:92]),
	}
	return h, nil
}

// Encode renders h into a buffer of length lbs (the header is padded with
// zeros from HeaderSize out to lbs), with HeaderCRC32 freshly computed and
// written in place.
func (h *Header) Encode(lbs int) ([]byte, error) {
	size := int(h.HeaderSize)
	if size < Size {
		size = Size
	}
	if size > lbs {
		return nil, fmt.Errorf("header: header size %d exceeds logical block size %d", size, lbs)
	}
	buf := make([]byte, lbs)
	copy(buf[0:8], Signature[:])
	binary.LittleEndian.PutUint32(buf[8:12], Revision10)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(size))
	// buf[16:20] (header_crc32) left zero for CRC computation below.
	// buf[20:24] reserved, left zero.
	binary.LittleEndian.PutUint64(buf[24:32], h.CurrentLBA)
	binary.LittleEndian.PutUint64(buf[32:40], h.BackupLBA)
	binary.LittleEndian.PutUint64(buf[40:48], h.FirstUsableLBA)
	binary.LittleEndian.PutUint64(buf[48:56], h.LastUsableLBA)
	if err := guid.Encode(h.DiskGUID, buf[56:72]); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(buf[72:80], h.PartStart)
	binary.LittleEndian.PutUint32(buf[80:84], h.NumParts)
	binary.LittleEndian.PutUint32(buf[84:88], h.PartSize)
	binary.LittleEndian.PutUint32(buf[88:92], h.CRC32Parts)

	crc := computeHeaderCRC(buf[:size])
	binary.LittleEndian.PutUint32(buf[16:20], crc)
	h.HeaderCRC32 = crc
	h.HeaderSize = uint32(size)
	return buf, nil
}

// computeHeaderCRC computes the IEEE CRC-32 over header bytes with the
// header_crc32 field (offset 16..20) treated as zero, per the GPT spec.
func computeHeaderCRC(headerBytes []byte) uint32 {
	tmp := make([]byte, len(headerBytes))
	copy(tmp, headerBytes)
	tmp[16], tmp[17], tmp[18], tmp[19] = 0, 0, 0, 0
	return crc32.ChecksumIEEE(tmp)
}

// ComputePartsCRC computes crc32_parts over exactly numParts*partSize
// bytes of the entry array, excluding any sector padding.
func ComputePartsCRC(entryArray []byte, numParts, partSize uint32) uint32 {
	n := int(numParts) * int(partSize)
	if n > len(entryArray) {
		n = len(entryArray)
	}
	return crc32.ChecksumIEEE(entryArray[:n])
}

// String renders a one-line human-readable summary.
func (h *Header) String() string {
	return fmt.Sprintf("GPT header @LBA%d (backup@%d) disk=%s usable=[%d,%d] parts=%d*%d crc=0x%08x",
		h.CurrentLBA, h.BackupLBA, h.DiskGUID, h.FirstUsableLBA, h.LastUsableLBA, h.NumParts, h.PartSize, h.HeaderCRC32)
}

// ConsistentWith reports whether h and other agree on every field the open
// protocol's cross-header consistency check requires (disk_guid, num_parts,
// part_size, mutually-pointing current/backup LBAs, first/last usable LBA,
// and crc32_parts).
func (h *Header) ConsistentWith(other *Header) bool {
	return h.DiskGUID == other.DiskGUID &&
		h.NumParts == other.NumParts &&
		h.PartSize == other.PartSize &&
		h.CurrentLBA == other.BackupLBA &&
		h.BackupLBA == other.CurrentLBA &&
		h.FirstUsableLBA == other.FirstUsableLBA &&
		h.LastUsableLBA == other.LastUsableLBA &&
		h.CRC32Parts == other.CRC32Parts
}
