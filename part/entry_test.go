package part

import (
	"testing"

	"github.com/google/uuid"
)

func sampleEntry() *Entry {
	return &Entry{
		TypeGUID:   uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B"),
		UniqueGUID: uuid.MustParse("1B6A2BFA-E92B-184C-A8A7-ED0610D54821"),
		FirstLBA:   34,
		LastLBA:    38,
		Flags:      0,
		Name:       "EFI System",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := sampleEntry()
	buf := make([]byte, Size)
	if err := e.Encode(buf); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil entry")
	}
	if *got != *e {
		t.Errorf("round trip mismatch: got %+v want %+v", got, e)
	}
}

func TestDecodeUnusedSlot(t *testing.T) {
	buf := make([]byte, Size)
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil entry for unused slot, got %+v", got)
	}
}

func TestEncodeNameTooLong(t *testing.T) {
	e := sampleEntry()
	e.Name = ""
	for i := 0; i < 40; i++ {
		e.Name += "x"
	}
	buf := make([]byte, Size)
	err := e.Encode(buf)
	if _, ok := err.(NameTooLongError); !ok {
		t.Fatalf("got %v, want NameTooLongError", err)
	}
}

func TestSectorsLenAndBytesLen(t *testing.T) {
	e := sampleEntry()
	if got := e.SectorsLen(); got != 5 {
		t.Errorf("SectorsLen() = %d, want 5", got)
	}
	if got := e.BytesLen(512); got != 2560 {
		t.Errorf("BytesLen(512) = %d, want 2560", got)
	}
}

func TestIsLive(t *testing.T) {
	buf := make([]byte, Size)
	if IsLive(buf) {
		t.Error("all-zero slot should not be live")
	}
	e := sampleEntry()
	_ = e.Encode(buf)
	if !IsLive(buf) {
		t.Error("populated slot should be live")
	}
}
