// Package guid encodes and decodes UUIDs in the mixed-endian byte order
// the GPT specification uses on disk, which differs from the big-endian
// string/byte order RFC 4122 and github.com/google/uuid use natively.
package guid

import (
	"fmt"

	"github.com/google/uuid"
)

// Size is the on-disk byte width of a GPT GUID field.
const Size = 16

// Nil is the all-zero GUID, used to mark an unused partition entry slot.
var Nil uuid.UUID

// Decode reads a GPT mixed-endian GUID from b[:16] and returns it as a
// standard uuid.UUID (RFC 4122 byte order).
func Decode(b []byte) (uuid.UUID, error) {
	if len(b) < Size {
		return uuid.Nil, fmt.Errorf("guid: need %d bytes, got %d", Size, len(b))
	}
	var out [Size]byte
	// first three groups (4,2,2 bytes) are stored little-endian on disk;
	// reverse each group back into RFC 4122 big-endian order.
	reverseInto(out[0:4], b[0:4])
	reverseInto(out[4:6], b[4:6])
	reverseInto(out[6:8], b[6:8])
	// remaining two groups (2,6 bytes) are stored as-is.
	copy(out[8:16], b[8:16])
	return uuid.FromBytes(out[:])
}

// Encode writes u into b[:16] in GPT mixed-endian byte order. b must be at
// least Size bytes long.
func Encode(u uuid.UUID, b []byte) error {
	if len(b) < Size {
		return fmt.Errorf("guid: need %d bytes, got %d", Size, len(b))
	}
	raw, err := u.MarshalBinary()
	if err != nil {
		return err
	}
	reverseInto(b[0:4], raw[0:4])
	reverseInto(b[4:6], raw[4:6])
	reverseInto(b[6:8], raw[6:8])
	copy(b[8:16], raw[8:16])
	return nil
}

// New generates a fresh random (version 4) unique partition GUID.
func New() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func reverseInto(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}
