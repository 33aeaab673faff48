// Package gpt reads, validates, mutates, and writes GUID Partition Table
// metadata on block-addressable storage: a protective MBR, a primary and
// backup GPT header, and the partition entry array each header anchors.
//
// A typical session opens a device through a Config, inspects or mutates
// the resulting Disk's partition map, and calls Write to persist the
// result following the backup-then-primary write order the UEFI spec's
// crash-safety guidance calls for.
package gpt

import "github.com/sirupsen/logrus"

// Log is the package-level logger every Disk operation writes Trace/Debug/
// Warn/Error entries to: Trace and Debug trace routine mutations and
// writes, Warn marks a rejected mutation or a header/MBR flagged dirty on
// open, and Error marks an open or removal that fails outright. Callers
// may replace it (or any of its fields) to redirect or silence library
// logging; the library never calls logrus.Fatal or logrus.Panic.
var Log = logrus.New()
