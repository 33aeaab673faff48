package ptype

import (
	"testing"

	"github.com/google/uuid"
)

func TestLookupKnown(t *testing.T) {
	r := NewRegistry()
	id := uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	got := r.Lookup(id)
	if got.Name != "EFI System Partition" {
		t.Errorf("got %q", got.Name)
	}
	if got.String() != "EFI System Partition" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestLookupUnknown(t *testing.T) {
	r := NewRegistry()
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	got := r.Lookup(id)
	if got.OS != "" {
		t.Errorf("expected no OS category for unknown type, got %q", got.OS)
	}
	want := "Unknown(" + id.String() + ")"
	if got.Name != want {
		t.Errorf("got %q want %q", got.Name, want)
	}
}

func TestRegisterCustom(t *testing.T) {
	r := NewRegistry()
	id := uuid.MustParse("AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE")
	r.Register(Type{GUID: id, OS: "Custom", Name: "Custom Partition"})
	got := r.Lookup(id)
	if got.Name != "Custom Partition" || got.OS != "Custom" {
		t.Errorf("got %+v", got)
	}
}

func TestLookupString(t *testing.T) {
	r := NewRegistry()
	got, err := r.LookupString("c12a7328-f81f-11d2-ba4b-00a0c93ec93b")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "EFI System Partition" {
		t.Errorf("got %q", got.Name)
	}
}
