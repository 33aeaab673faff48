// Package mbr implements the protective MBR GPT disks carry at LBA 0: a
// legacy 512-byte boot record whose sole meaningful partition record
// advertises type 0xEE spanning the disk, warning MBR-only tools away.
package mbr

import (
	"encoding/binary"
	"fmt"
)

// Size is the fixed width of an MBR record.
const Size = 512

// ProtectiveType is the partition type byte that marks a GPT protective
// partition record.
const ProtectiveType = 0xEE

var signature = [2]byte{0x55, 0xAA}

// PartRecord is one of the four 16-byte legacy partition records.
type PartRecord struct {
	BootIndicator                    byte
	StartHead, StartSector, StartTrack byte
	OSType                            byte
	EndHead, EndSector, EndTrack      byte
	LBStart                           uint32
	LBSize                            uint32
}

// NewProtective returns the partition record the GPT spec requires in
// slot 0: type 0xEE, starting CHS 0x000200, ending CHS 0xFFFFFF, starting
// LBA 1, size min(diskLBACount-1, 0xFFFFFFFF).
func NewProtective(diskLBACount uint64) PartRecord {
	size := diskLBACount - 1
	if size > 0xFFFFFFFF {
		size = 0xFFFFFFFF
	}
	return PartRecord{
		BootIndicator: 0x00,
		StartHead:     0x00,
		StartSector:   0x02,
		StartTrack:    0x00,
		OSType:        ProtectiveType,
		EndHead:       0xFF,
		EndSector:     0xFF,
		EndTrack:      0xFF,
		LBStart:       1,
		LBSize:        uint32(size),
	}
}

func (p PartRecord) encode(buf []byte) {
	buf[0] = p.BootIndicator
	buf[1] = p.StartHead
	buf[2] = p.StartSector
	buf[3] = p.StartTrack
	buf[4] = p.OSType
	buf[5] = p.EndHead
	buf[6] = p.EndSector
	buf[7] = p.EndTrack
	binary.LittleEndian.PutUint32(buf[8:12], p.LBStart)
	binary.LittleEndian.PutUint32(buf[12:16], p.LBSize)
}

func decodeRecord(buf []byte) PartRecord {
	return PartRecord{
		BootIndicator: buf[0],
		StartHead:     buf[1],
		StartSector:   buf[2],
		StartTrack:    buf[3],
		OSType:        buf[4],
		EndHead:       buf[5],
		EndSector:     buf[6],
		EndTrack:      buf[7],
		LBStart:       binary.LittleEndian.Uint32(buf[8:12]),
		LBSize:        binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// ProtectiveMBR is the full 512-byte LBA-0 record.
type ProtectiveMBR struct {
	Bootcode      [440]byte
	DiskSignature [4]byte
	Unknown       uint16
	Partitions    [4]PartRecord
}

// New returns a protective MBR sized for diskLBACount total LBAs, with
// zeroed bootcode and disk signature.
func New(diskLBACount uint64) *ProtectiveMBR {
	m := &ProtectiveMBR{}
	m.Partitions[0] = NewProtective(diskLBACount)
	return m
}

// InvalidSignatureError reports a non-0x55AA trailing signature.
type InvalidSignatureError struct{ Got [2]byte }

func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("mbr: invalid signature 0x%02x%02x", e.Got[0], e.Got[1])
}

// InvalidProtectiveTypeError reports a slot-0 OS type other than 0xEE.
type InvalidProtectiveTypeError struct{ Got byte }

func (e InvalidProtectiveTypeError) Error() string {
	return fmt.Sprintf("mbr: slot 0 type 0x%02x is not the protective type 0x%02x", e.Got, ProtectiveType)
}

// Parse validates and decodes a 512-byte MBR record. Only the signature
// and the slot-0 OS type byte are validated, matching the GPT spec's
// narrow reading contract for a protective MBR; CHS fields are not
// checked.
func Parse(buf []byte) (*ProtectiveMBR, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("mbr: need %d bytes, got %d", Size, len(buf))
	}
	var sig [2]byte
	copy(sig[:], buf[510:512])
	if sig != signature {
		return nil, InvalidSignatureError{Got: sig}
	}
	m := &ProtectiveMBR{}
	copy(m.Bootcode[:], buf[0:440])
	copy(m.DiskSignature[:], buf[440:444])
	m.Unknown = binary.LittleEndian.Uint16(buf[444:446])
	for i := 0; i < 4; i++ {
		off := 446 + i*16
		m.Partitions[i] = decodeRecord(buf[off : off+16])
	}
	if m.Partitions[0].OSType != ProtectiveType {
		return nil, InvalidProtectiveTypeError{Got: m.Partitions[0].OSType}
	}
	return m, nil
}

// Encode renders the full 512-byte record.
func (m *ProtectiveMBR) Encode() []byte {
	buf := make([]byte, Size)
	copy(buf[0:440], m.Bootcode[:])
	copy(buf[440:444], m.DiskSignature[:])
	binary.LittleEndian.PutUint16(buf[444:446], m.Unknown)
	for i, p := range m.Partitions {
		off := 446 + i*16
		p.encode(buf[off : off+16])
	}
	copy(buf[510:512], signature[:])
	return buf
}

// ConservativeUpdate returns the 66-byte region (four 16-byte partition
// records plus the 2-byte 0x55AA signature) to be written starting at
// ConservativeUpdateOffset (446), for callers that want to convert an existing MBR
// to protective form while preserving its bootcode and disk signature
// untouched.
func (m *ProtectiveMBR) ConservativeUpdate() []byte {
	buf := make([]byte, 4*16+2)
	for i, p := range m.Partitions {
		p.encode(buf[i*16 : i*16+16])
	}
	copy(buf[4*16:4*16+2], signature[:])
	return buf
}

// ConservativeUpdateOffset is the byte offset ConservativeUpdate's output
// must be written at (the start of the first partition record).
const ConservativeUpdateOffset = 446
