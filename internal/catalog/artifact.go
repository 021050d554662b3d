package catalog

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Ext is the backup-file extension every artifact name ends in.
	Ext = ".dump"
	// CompressedExt is appended after Ext for compressed payloads.
	CompressedExt = ".zst"
	// SidecarExt is the metadata sidecar suffix, co-located with the
	// payload as <artifactName>.json. Changing it requires a migration
	// plan for existing artifacts.
	SidecarExt = ".json"

	namePrefix = "backup_"
)

// Timestamp renders t for embedding in artifact names: UTC RFC3339 with
// milliseconds, colons and dots replaced by dashes so the result is a legal
// filename everywhere and lexical order matches creation order.
func Timestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

// Name generates an artifact name embedding the database and creation time,
// e.g. backup_shop_2024-01-15T02-00-00-000Z.dump.
func Name(database string, at time.Time, compressed bool) string {
	name := fmt.Sprintf("%s%s_%s%s", namePrefix, database, Timestamp(at), Ext)
	if compressed {
		name += CompressedExt
	}
	return name
}

// isArtifactName reports whether a directory entry looks like a payload.
func isArtifactName(name string) bool {
	if !strings.HasPrefix(name, namePrefix) {
		return false
	}
	return strings.HasSuffix(name, Ext) || strings.HasSuffix(name, Ext+CompressedExt)
}

// Artifact is a completed dump: payload file plus whatever its sidecar said.
type Artifact struct {
	Name          string
	Path          string
	Size          int64
	Database      string
	CreatedAt     time.Time
	OriginBackend string
	OriginTarget  string
	// HasMetadata is false when the sidecar was missing or unreadable and
	// Database fell back to the configured default.
	HasMetadata bool
}
