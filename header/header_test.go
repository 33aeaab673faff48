package header

import (
	"testing"

	"github.com/google/uuid"
)

var fixtureGUID = uuid.MustParse("1B6A2BFA-E92B-184C-A8A7-ED0610D54821")

// TestBuilderMatchesFixture pins the builder's usable-range math against a
// known-good 72-LBA, 512-byte-sector fixture: disk_guid
// 1B6A2BFA-E92B-184C-A8A7-ED0610D54821, backup at LBA 71, 128 entries of
// 128 bytes, yielding first_usable=34, last_usable=38, part_start=2
// (primary) / 39 (backup).
func TestBuilderMatchesFixture(t *testing.T) {
	primary, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	if err != nil {
		t.Fatalf("primary build: %v", err)
	}
	backup, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Primary(false).Build(512)
	if err != nil {
		t.Fatalf("backup build: %v", err)
	}

	check := func(name string, got, want uint64) {
		if got != want {
			t.Errorf("%s: got %d want %d", name, got, want)
		}
	}
	check("primary.CurrentLBA", primary.CurrentLBA, 1)
	check("primary.BackupLBA", primary.BackupLBA, 71)
	check("primary.FirstUsableLBA", primary.FirstUsableLBA, 34)
	check("primary.LastUsableLBA", primary.LastUsableLBA, 38)
	check("primary.PartStart", primary.PartStart, 2)

	check("backup.CurrentLBA", backup.CurrentLBA, 71)
	check("backup.BackupLBA", backup.BackupLBA, 1)
	check("backup.FirstUsableLBA", backup.FirstUsableLBA, 34)
	check("backup.LastUsableLBA", backup.LastUsableLBA, 38)
	check("backup.PartStart", backup.PartStart, 39)
}

func TestFromHeaderRoundTrip(t *testing.T) {
	primary, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := FromHeader(primary).Build(512)
	if err != nil {
		t.Fatal(err)
	}
	if *rebuilt != *primary {
		t.Errorf("rebuilt header differs: %+v vs %+v", rebuilt, primary)
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	h, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := h.Encode(512)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 512 {
		t.Fatalf("encoded length = %d, want 512", len(buf))
	}
	got, err := Parse(buf, h.CurrentLBA)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.HeaderCRC32 != h.HeaderCRC32 {
		t.Errorf("crc mismatch after round trip")
	}
	if got.DiskGUID != h.DiskGUID || got.FirstUsableLBA != h.FirstUsableLBA {
		t.Errorf("fields diverged after round trip: %+v vs %+v", got, h)
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	h, _ := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	buf, _ := h.Encode(512)
	buf[0] = 'X'
	if _, err := Parse(buf, 1); err == nil {
		t.Error("expected BadSignatureError")
	} else if _, ok := err.(BadSignatureError); !ok {
		t.Errorf("got %T, want BadSignatureError", err)
	}
}

func TestParseRejectsBadCRC(t *testing.T) {
	h, _ := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	buf, _ := h.Encode(512)
	buf[88] ^= 0xFF
	if _, err := Parse(buf, 1); err == nil {
		t.Error("expected BadCRCError")
	} else if _, ok := err.(BadCRCError); !ok {
		t.Errorf("got %T, want BadCRCError", err)
	}
}

func TestParseRejectsLBAMismatch(t *testing.T) {
	h, _ := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	buf, _ := h.Encode(512)
	if _, err := Parse(buf, 2); err == nil {
		t.Error("expected LBAMismatchError")
	} else if _, ok := err.(LBAMismatchError); !ok {
		t.Errorf("got %T, want LBAMismatchError", err)
	}
}

func TestLastUsableClampedToBackupArrayCeiling(t *testing.T) {
	h, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).LastUsable(1000).Build(512)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.LastUsableLBA != 38 {
		t.Errorf("LastUsableLBA = %d, want 38 (an override above the backup array's ceiling must be clamped down, not honored)", h.LastUsableLBA)
	}

	// A caller-supplied value below the ceiling is honored as-is.
	h2, err := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).LastUsable(36).Build(512)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h2.LastUsableLBA != 36 {
		t.Errorf("LastUsableLBA = %d, want 36", h2.LastUsableLBA)
	}
}

func TestMissingBackupLBA(t *testing.T) {
	if _, err := NewBuilder().Build(512); err != ErrMissingBackupLBA {
		t.Errorf("got %v, want ErrMissingBackupLBA", err)
	}
}

func TestConsistentWith(t *testing.T) {
	primary, _ := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Build(512)
	backup, _ := NewBuilder().DiskGUID(fixtureGUID).BackupLBA(71).Primary(false).Build(512)
	if !primary.ConsistentWith(backup) {
		t.Error("expected primary and backup to be consistent")
	}
	backup.DiskGUID = uuid.New()
	if primary.ConsistentWith(backup) {
		t.Error("expected inconsistency after mutating backup disk guid")
	}
}
