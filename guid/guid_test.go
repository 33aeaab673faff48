package guid

import (
	"testing"

	"github.com/google/uuid"
)

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"1B6A2BFA-E92B-184C-A8A7-ED0610D54821",
		"00000000-0000-0000-0000-000000000000",
		"C12A7328-F81F-11D2-BA4B-00A0C93EC93B",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			u := uuid.MustParse(s)
			buf := make([]byte, Size)
			if err := Encode(u, buf); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != u {
				t.Errorf("round trip mismatch: got %s want %s", got, u)
			}
		})
	}
}

// TestKnownLayout pins the mixed-endian transform against a hand-computed
// example: EFI System Partition GUID C12A7328-F81F-11D2-BA4B-00A0C93EC93B
// must encode with its first three groups byte-reversed.
func TestKnownLayout(t *testing.T) {
	u := uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	buf := make([]byte, Size)
	if err := Encode(u, buf); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		0x28, 0x73, 0x2a, 0xc1, // group 1 reversed
		0x1f, 0xf8, // group 2 reversed
		0xd2, 0x11, // group 3 reversed
		0xba, 0x4b, // group 4 as-is
		0x00, 0xa0, 0xc9, 0x3e, 0xc9, 0x3b, // group 5 as-is
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got 0x%02x want 0x%02x", i, buf[i], want[i])
		}
	}
}

func TestDecodeShort(t *testing.T) {
	if _, err := Decode(make([]byte, 4)); err == nil {
		t.Error("expected error for short buffer")
	}
}
