package backup

import (
	"time"

	"github.com/orbitapp/orbit-server/internal/store"
)

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// Archive entry names.
const (
	manifestEntry = "manifest.json"
	dataEntry     = "store.badger"
)

// archiveExt marks backup files in the backup directory.
const archiveExt = ".orbit.zip"

// Manifest describes backup contents and metadata.
type Manifest struct {
	Version       string    `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	ServerVersion string    `json:"server_version"`

	// StoreVersion is the Badger version the snapshot covers.
	StoreVersion uint64 `json:"store_version"`
	// DataChecksum is the SHA-256 of the store entry.
	DataChecksum string `json:"data_checksum"`

	Counts store.Counts `json:"counts"`
}
