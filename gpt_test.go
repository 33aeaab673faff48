package gpt

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Quyzi/gpt/backend"
	"github.com/Quyzi/gpt/ptype"
)

// buildFixture creates a fresh 72-LBA, 512-byte-sector disk with two
// partitions at [34,34] and [35,38], matching the end-to-end fixture in
// spec §8 scenario 1.
func buildFixture(t *testing.T) (*backend.MemDevice, uuid.UUID, uuid.UUID) {
	t.Helper()
	dev := backend.NewMemDevice(72 * 512)
	d, err := NewConfig().Writable(true).CreateFromDevice(dev, uuid.Nil)
	if err != nil {
		t.Fatalf("CreateFromDevice: %v", err)
	}

	idx1, err := d.AddPartitionAt("first", 34, 512, ptype.Default().Lookup(uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")).GUID, 0)
	if err != nil {
		t.Fatalf("AddPartitionAt #1: %v", err)
	}
	idx2, err := d.AddPartitionAt("second", 35, 4*512, ptype.Default().Lookup(uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")).GUID, 0)
	if err != nil {
		t.Fatalf("AddPartitionAt #2: %v", err)
	}
	_ = idx1

	id2 := d.Partitions()[idx2].UniqueGUID

	if _, _, err := d.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dev, d.Partitions()[idx1].UniqueGUID, id2
}

func TestScenarioReadFixture(t *testing.T) {
	dev, _, _ := buildFixture(t)

	d, err := NewConfig().Open(dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(d.Partitions()) != 2 {
		t.Fatalf("got %d partitions, want 2", len(d.Partitions()))
	}
	if d.Active().FirstUsableLBA != 34 || d.Active().LastUsableLBA != 38 {
		t.Errorf("usable range = [%d,%d], want [34,38]", d.Active().FirstUsableLBA, d.Active().LastUsableLBA)
	}
}

func TestScenarioCorruptPrimary(t *testing.T) {
	dev, _, _ := buildFixture(t)

	// Zero the primary header's CRC field on disk (offset 16 within LBA 1).
	zero := make([]byte, 4)
	if _, err := dev.WriteAt(zero, 512+16); err != nil {
		t.Fatal(err)
	}

	if _, err := NewConfig().Open(dev); err != nil {
		t.Fatalf("Open with only_valid_headers=false should succeed via backup: %v", err)
	}

	if _, err := NewConfig().OnlyValidHeaders(true).Open(dev); err == nil {
		t.Error("Open with only_valid_headers=true should fail when primary is invalid")
	}
}

func TestScenarioAddAndWrite(t *testing.T) {
	dev := backend.NewMemDevice(200000 * 512)
	d, err := NewConfig().Writable(true).CreateFromDevice(dev, uuid.Nil)
	if err != nil {
		t.Fatalf("CreateFromDevice: %v", err)
	}

	espType := uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	idx, err := d.AddPartition("ESP", 100*512, espType, 0, 0)
	if err != nil {
		t.Fatalf("AddPartition: %v", err)
	}

	if _, _, err := d.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reopened, err := NewConfig().Open(dev)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, ok := reopened.Partitions()[idx]
	if !ok {
		t.Fatalf("partition at slot %d missing after reopen", idx)
	}
	if e.FirstLBA%DefaultAlignment != 0 {
		t.Errorf("first_lba %d not aligned to %d", e.FirstLBA, DefaultAlignment)
	}
}

func TestScenarioOverlapRejection(t *testing.T) {
	dev, _, _ := buildFixture(t)
	d, err := NewConfig().Writable(true).Open(dev)
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.AddPartitionAt("overlap", 36, 3*512, uuid.New(), 0)
	if _, ok := err.(OverlapError); !ok {
		t.Fatalf("got %v (%T), want OverlapError", err, err)
	}
}

func TestAddPartitionNameTooLong(t *testing.T) {
	dev := backend.NewMemDevice(200000 * 512)
	d, err := NewConfig().Writable(true).CreateFromDevice(dev, uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	before := d.Partitions()

	longName := strings.Repeat("x", 40)
	if _, err := d.AddPartition(longName, 512, uuid.New(), 0, 0); err == nil {
		t.Fatal("expected an error for a name exceeding 36 UTF-16 code units")
	} else if _, ok := err.(NameTooLongError); !ok {
		t.Fatalf("got %v (%T), want NameTooLongError", err, err)
	}
	if _, err := d.AddPartitionAt(longName, d.Active().FirstUsableLBA, 512, uuid.New(), 0); err == nil {
		t.Fatal("expected an error for a name exceeding 36 UTF-16 code units")
	} else if _, ok := err.(NameTooLongError); !ok {
		t.Fatalf("got %v (%T), want NameTooLongError", err, err)
	}

	after := d.Partitions()
	if len(after) != len(before) {
		t.Fatalf("rejected AddPartition mutated the partition map: had %d, now %d", len(before), len(after))
	}
}

func TestPreserveBootcodeSurvivesWrite(t *testing.T) {
	dev, _, _ := buildFixture(t)

	// Replace LBA 0 with a bootable-looking legacy MBR: real bootcode, a
	// non-protective type byte, still a valid 0x55AA signature. Opening
	// with RequireMBR unset (the default) should tolerate this and flag the
	// MBR dirty for rewrite.
	seed := make([]byte, 512)
	for i := 0; i < 440; i++ {
		seed[i] = 0xAB
	}
	seed[510], seed[511] = 0x55, 0xAA
	if _, err := dev.WriteAt(seed, 0); err != nil {
		t.Fatal(err)
	}

	d, err := NewConfig().Writable(true).PreserveBootcode(true).Open(dev)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := d.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, 512)
	if _, err := dev.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 440; i++ {
		if got[i] != 0xAB {
			t.Fatalf("bootcode byte %d = 0x%02x, want 0xAB (bootcode must survive a preserve-bootcode write)", i, got[i])
		}
	}
	if got[450] != 0xEE { // protective partition record's OSType byte, offset 446+4
		t.Errorf("protective partition type byte = 0x%02x, want 0xEE", got[450])
	}
}

func TestScenarioNoSpace(t *testing.T) {
	dev := backend.NewMemDevice(100 * 512)
	d, err := NewConfig().Writable(true).CreateFromDevice(dev, uuid.Nil)
	if err != nil {
		t.Fatal(err)
	}
	h := d.Active()
	usable := h.LastUsableLBA - h.FirstUsableLBA + 1
	if _, err := d.AddPartitionAt("fill", h.FirstUsableLBA, usable*512, uuid.New(), 0); err != nil {
		t.Fatalf("filling usable range: %v", err)
	}
	if _, err := d.AddPartition("overflow", 512, uuid.New(), 0, 1); err != ErrNoSpace {
		t.Fatalf("got %v, want ErrNoSpace", err)
	}
}

func TestScenarioGUIDRemoval(t *testing.T) {
	dev, _, secondGUID := buildFixture(t)
	d, err := NewConfig().Writable(true).Open(dev)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.RemovePartitionByGUID(secondGUID); err != nil {
		t.Fatalf("RemovePartitionByGUID: %v", err)
	}
	if _, _, err := d.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reopened, err := NewConfig().Open(dev)
	if err != nil {
		t.Fatal(err)
	}
	if len(reopened.Partitions()) != 1 {
		t.Fatalf("got %d partitions after removal, want 1", len(reopened.Partitions()))
	}
}

func TestReadOnlyWriteFails(t *testing.T) {
	dev, _, _ := buildFixture(t)
	d, err := NewConfig().Open(dev)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := d.Write(); err != ErrReadOnly {
		t.Fatalf("got %v, want ErrReadOnly", err)
	}
}

func TestCountImmutableByDefault(t *testing.T) {
	dev, _, _ := buildFixture(t)
	d, err := NewConfig().Writable(true).Open(dev)
	if err != nil {
		t.Fatal(err)
	}
	d.primary.NumParts++
	if _, _, err := d.Write(); err != ErrCountImmutable {
		t.Fatalf("got %v, want ErrCountImmutable", err)
	}
}
