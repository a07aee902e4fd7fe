package backup

import (
	"time"

	"github.com/orbitapp/orbit-server/internal/store"
)

// BackupOptions configures backup creation.
type BackupOptions struct {
	OutputPath string // Where to write the backup file; defaults to the backup directory
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	Mode   RestoreMode
	DryRun bool // Validate without writing
}

// RestoreMode determines how to handle existing data.
type RestoreMode string

const (
	// RestoreModeFull wipes existing data and restores from backup.
	RestoreModeFull RestoreMode = "full"

	// RestoreModeMerge writes backup keys over existing data. Keys the
	// backup does not contain are kept.
	RestoreModeMerge RestoreMode = "merge"
)

// Valid returns true if the restore mode is recognized.
func (m RestoreMode) Valid() bool {
	switch m {
	case RestoreModeFull, RestoreModeMerge:
		return true
	default:
		return false
	}
}

// BackupResult contains the outcome of a backup operation.
type BackupResult struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   store.Counts  `json:"counts"`
	Duration time.Duration `json:"duration"`
	Checksum string        `json:"checksum"`
}

// BackupInfo describes an existing backup.
type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RestoreResult contains the outcome of a restore operation.
type RestoreResult struct {
	Mode     RestoreMode   `json:"mode"`
	DryRun   bool          `json:"dry_run"`
	Expected store.Counts  `json:"expected"`
	Restored store.Counts  `json:"restored"`
	Duration time.Duration `json:"duration"`
}

// ValidationResult describes backup validity.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Manifest *Manifest `json:"manifest,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}
