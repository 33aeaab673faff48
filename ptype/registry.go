// Package ptype maps well-known GPT partition type GUIDs to human-readable
// names and operating-system categories, with a fallback for unknown GUIDs
// and an API for callers to register additional entries before opening a
// disk.
package ptype

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Type describes one well-known partition type entry.
type Type struct {
	GUID uuid.UUID
	OS   string
	Name string
}

// String renders "OS: Name", or just Name when OS is empty or "None",
// matching the Display impl the catalog this package is grounded on uses
// for its entries.
func (t Type) String() string {
	if t.OS == "" || t.OS == "None" {
		return t.Name
	}
	return t.OS + ": " + t.Name
}

// Unknown marks a GUID absent from the catalog, formatted as "Unknown(...)".
func Unknown(id uuid.UUID) Type {
	return Type{GUID: id, OS: "", Name: "Unknown(" + id.String() + ")"}
}

// Registry is an open-to-extension catalog of well-known partition types.
// The zero value is not usable; use NewRegistry (or Default) to obtain one
// pre-populated with the standard catalog.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Type
}

// NewRegistry returns a Registry seeded with the standard well-known
// partition type catalog.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[uuid.UUID]Type, len(standardCatalog))}
	for _, t := range standardCatalog {
		r.entries[t.GUID] = t
	}
	return r
}

var defaultOnce sync.Once
var defaultRegistry *Registry

// Default returns the process-wide shared registry, lazily seeded with the
// standard catalog on first use. Callers that need isolation from other
// callers' Register calls should use NewRegistry instead.
func Default() *Registry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// Register adds or overwrites a catalog entry. Intended to be called before
// opening a disk view, so lookups performed during open see the addition.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t.GUID] = t
}

// Lookup returns the catalog entry for id, or Unknown(id) if absent. The
// lookup is effectively case-insensitive because GUIDs are compared as
// parsed values, not hyphenated strings.
func (r *Registry) Lookup(id uuid.UUID) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.entries[id]; ok {
		return t
	}
	return Unknown(id)
}

// LookupString parses s as a hyphenated GUID string (case-insensitively)
// and looks it up.
func (r *Registry) LookupString(s string) (Type, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return Type{}, err
	}
	return r.Lookup(id), nil
}

func mustGUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic("ptype: bad built-in GUID literal " + s + ": " + err.Error())
	}
	return id
}

// standardCatalog mirrors the well-known partition type table carried in
// the reference implementation's partition type catalog, extended with the
// handful spec.md calls out by name.
var standardCatalog = []Type{
	{mustGUID("00000000-0000-0000-0000-000000000000"), "None", "Unused"},
	{mustGUID("024DEE41-33E7-11D3-9D69-0008C781F39F"), "None", "MBR Partition Scheme"},
	{mustGUID("C12A7328-F81F-11D2-BA4B-00A0C93EC93B"), "None", "EFI System Partition"},
	{mustGUID("21686148-6449-6E6F-744E-656564454649"), "None", "BIOS Boot Partition"},
	{mustGUID("D3BFE2DE-3DAF-11DF-BA40-E3A556D89593"), "None", "Intel Fast Flash (iFFS) Partition"},
	{mustGUID("F4019732-066E-4E12-8273-346C5641494F"), "None", "Sony Boot Partition"},
	{mustGUID("BFBFAFE7-A34F-448A-9A5B-6213EB736C22"), "None", "Lenovo Boot Partition"},

	{mustGUID("E3C9E316-0B5C-4DB8-817D-F92DF00215AE"), "Windows", "Microsoft Reserved Partition"},
	{mustGUID("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"), "Windows", "Basic Data Partition"},
	{mustGUID("5808C8AA-7E8F-42E0-85D2-E1E90434CFB3"), "Windows", "Logical Disk Manager Metadata Partition"},
	{mustGUID("AF9B60A0-1431-4F62-BC68-3311714A69AD"), "Windows", "Logical Disk Manager Data Partition"},
	{mustGUID("DE94BBA4-06D1-4D40-A16A-BFD50179D6AC"), "Windows", "Windows Recovery Environment"},
	{mustGUID("37AFFC90-EF7D-4E96-91C3-2D7AE055B174"), "Windows", "IBM General Parallel File System Partition"},
	{mustGUID("E75CAF8F-F680-4CEE-AFA3-B001E56EFC2D"), "Windows", "Storage Spaces Partition"},

	{mustGUID("75894C1E-3AEB-11D3-B7C1-7B03A0000000"), "HP-UX", "Data Partition"},
	{mustGUID("E2A1E728-32E3-11D6-A682-7B03A0000000"), "HP-UX", "Service Partition"},

	{mustGUID("0FC63DAF-8483-4772-8E79-3D69D8477DE4"), "Linux", "Linux Filesystem Data"},
	{mustGUID("A19D880F-05FC-4D3B-A006-743F0F84911E"), "Linux", "RAID Partition"},
	{mustGUID("44479540-F297-41B2-9AF7-D131D5F0458A"), "Linux", "Root Partition (x86)"},
	{mustGUID("4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709"), "Linux", "Root Partition (x86-64)"},
	{mustGUID("69DAD710-2CE4-4E3C-B16C-21A1D49ABED3"), "Linux", "Root Partition (32-bit ARM)"},
	{mustGUID("B921B045-1DF0-41C3-AF44-4C6F280D3FAE"), "Linux", "Root Partition (64-bit ARM/AArch64)"},
	{mustGUID("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"), "Linux", "Swap Partition"},
	{mustGUID("E6D6D379-F507-44C2-A23C-238F2A3DF928"), "Linux", "Logical Volume Manager Partition"},
	{mustGUID("933AC7E1-2EB4-4F13-B844-0E14E2AEF915"), "Linux", "/home Partition"},
	{mustGUID("3B8F8425-20E0-4F3B-907F-1A25A76F98E8"), "Linux", "/srv (Server Data) Partition"},
	{mustGUID("7FFEC5C9-2D00-49B7-8941-3EA10A5586B7"), "Linux", "Plain dm-crypt Partition"},
	{mustGUID("CA7D7CCB-63ED-4C53-861C-1742536059CC"), "Linux", "LUKS Partition"},
	{mustGUID("8DA63339-0007-60C0-C436-083AC8230908"), "Linux", "Reserved"},

	{mustGUID("83BD6B9D-7F41-11DC-BE0B-001560B84F0F"), "FreeBSD", "Boot Partition"},
	{mustGUID("516E7CB4-6ECF-11D6-8FF8-00022D09712B"), "FreeBSD", "Data Partition"},
	{mustGUID("516E7CB5-6ECF-11D6-8FF8-00022D09712B"), "FreeBSD", "Swap Partition"},
	{mustGUID("516E7CB6-6ECF-11D6-8FF8-00022D09712B"), "FreeBSD", "Unix File System (UFS) Partition"},
	{mustGUID("516E7CB8-6ECF-11D6-8FF8-00022D09712B"), "FreeBSD", "Vinum Volume Manager Partition"},
	{mustGUID("516E7CBA-6ECF-11D6-8FF8-00022D09712B"), "FreeBSD", "ZFS Partition"},

	{mustGUID("48465300-0000-11AA-AA11-00306543ECAC"), "Apple", "Hierarchical File System Plus (HFS+) Partition"},
	{mustGUID("7C3457EF-0000-11AA-AA11-00306543ECAC"), "Apple", "APFS Partition"},
	{mustGUID("55465300-0000-11AA-AA11-00306543ECAC"), "Apple", "Apple UFS"},
	{mustGUID("6A898CC3-1DD2-11B2-99A6-080020736631"), "Apple", "ZFS"},
	{mustGUID("52414944-0000-11AA-AA11-00306543ECAC"), "Apple", "Apple RAID Partition"},
	{mustGUID("52414944-5F4F-11AA-AA11-00306543ECAC"), "Apple", "Apple RAID Partition, Offline"},
	{mustGUID("426F6F74-0000-11AA-AA11-00306543ECAC"), "Apple", "Apple Boot Partition (Recovery HD)"},
	{mustGUID("4C616265-6C00-11AA-AA11-00306543ECAC"), "Apple", "Apple Label"},
	{mustGUID("5265636F-7665-11AA-AA11-00306543ECAC"), "Apple", "Apple TV Recovery Partition"},
	{mustGUID("53746F72-6167-11AA-AA11-00306543ECAC"), "Apple", "Apple Core Storage Partition"},

	{mustGUID("6A82CB45-1DD2-11B2-99A6-080020736631"), "Solaris/illumos", "Boot Partition"},
	{mustGUID("6A85CF4D-1DD2-11B2-99A6-080020736631"), "Solaris/illumos", "Root Partition"},
	{mustGUID("6A87C46F-1DD2-11B2-99A6-080020736631"), "Solaris/illumos", "Swap Partition"},
	{mustGUID("6A8B642B-1DD2-11B2-99A6-080020736631"), "Solaris/illumos", "Backup Partition"},

	{mustGUID("49F48D32-B10E-11DC-B99B-0019D1879648"), "NetBSD", "Swap Partition"},
	{mustGUID("49F48D5A-B10E-11DC-B99B-0019D1879648"), "NetBSD", "FFS Partition"},
	{mustGUID("49F48D82-B10E-11DC-B99B-0019D1879648"), "NetBSD", "LFS Partition"},
	{mustGUID("49F48DAA-B10E-11DC-B99B-0019D1879648"), "NetBSD", "RAID Partition"},

	{mustGUID("FE3A2A5D-4F32-41A7-B725-ACCC3285A309"), "ChromeOS", "Kernel"},
	{mustGUID("3CB8E202-3B7E-47DD-8A3C-7FF2A13CFCEC"), "ChromeOS", "Root Filesystem"},
	{mustGUID("2E0A753D-9E48-43B0-8337-B15192CB1B5E"), "ChromeOS", "Reserved (Future Use)"},
	{mustGUID("CAB6E88E-ABF3-4102-A07A-D4BB9BE3C1D3"), "ChromeOS", "Firmware"},

	{mustGUID("42465331-3BA3-10F1-802A-4861696B7521"), "Haiku", "Haiku BFS"},

	{mustGUID("42F70834-0A1F-11EB-9CD2-0800200C9A66"), "Android-IA", "Bootloader"},
	{mustGUID("114EAFFE-1552-4022-B26E-9B053604CF84"), "Android-IA", "Bootloader2"},
	{mustGUID("49A4D17F-93A3-45C1-A0DE-F50B2EBE2599"), "Android-IA", "Boot"},
	{mustGUID("4177C722-9E92-4AAB-8644-43502BFD5506"), "Android-IA", "Recovery"},
	{mustGUID("EF32A33B-A409-486C-9141-9FFB711F6266"), "Android-IA", "Misc"},
	{mustGUID("20AC26BE-20B7-11E3-84C5-6CFDB94711E9"), "Android-IA", "Metadata"},
	{mustGUID("38F428E6-D326-425D-9140-6E0EA133647C"), "Android-IA", "System"},
	{mustGUID("A893EF21-E428-470A-9E55-0668FD91A2D9"), "Android-IA", "Cache"},
	{mustGUID("DC76DDA9-5AC1-491C-AF42-A82591580C0D"), "Android-IA", "Data"},
	{mustGUID("EBC597D0-2053-4B15-8B64-E0AAC75F4DB1"), "Android-IA", "Persistent"},
	{mustGUID("C5A0AEEC-13EA-11E5-A1B1-1697F925EC7B"), "Android-IA", "Vendor"},
	{mustGUID("BD59408B-4514-490D-BF12-9878D963F378"), "Android-IA", "Config"},
	{mustGUID("8F68CC74-C5E5-48DA-BE91-A0C8C15E9C80"), "Android-IA", "Factory"},
	{mustGUID("9FDAA6EF-4B3F-40D2-BA8D-BFF16BFB887B"), "Android-IA", "Factory (alt)"},
	{mustGUID("767941D0-2085-11E3-AD3B-6CFDB94711E9"), "Android-IA", "Fastboot/Tertiary"},
	{mustGUID("AC6D7924-EB71-4DF8-B48D-E267B27148FF"), "Android-IA", "OEM"},

	{mustGUID("45B0969E-9B03-4F30-B4C6-B4B80CEFF106"), "Ceph", "Journal"},
	{mustGUID("45B0969E-9B03-4F30-B4C6-5EC00CEFF106"), "Ceph", "dm-crypt Journal"},
	{mustGUID("4FBD7E29-9D25-41B8-AFD0-062C0CEFF05D"), "Ceph", "OSD"},
	{mustGUID("5CE17FCE-4087-4169-B7FF-056CC58473F9"), "Ceph", "dm-crypt OSD"},
	{mustGUID("89C57F98-2FE5-4DC0-89C1-F3AD0CEFF2BE"), "Ceph", "Disk in Creation"},
	{mustGUID("89C57F98-2FE5-4DC0-89C1-5EC00CEFF2BE"), "Ceph", "dm-crypt Disk in Creation"},
}
