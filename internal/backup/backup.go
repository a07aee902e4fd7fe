package backup

import (
	"archive/zip"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/orbitapp/orbit-server/internal/store"
)

// BackupService manages backup creation and listing.
type BackupService struct {
	store     *store.Store
	backupDir string
	version   string
	logger    *slog.Logger
}

// NewBackupService creates a BackupService.
func NewBackupService(s *store.Store, backupDir, version string, logger *slog.Logger) *BackupService {
	return &BackupService{
		store:     s,
		backupDir: backupDir,
		version:   version,
		logger:    logger,
	}
}

// Create writes a new backup archive: the store snapshot plus a manifest
// carrying its checksum and document counts.
func (s *BackupService) Create(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		timestamp := time.Now().Format("2006-01-02-150405")
		outputPath = filepath.Join(s.backupDir, "backup-"+timestamp+archiveExt)
	}

	s.logger.Info("creating backup", "output", outputPath)

	counts, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	// Write to temp file, rename on success.
	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	fileHash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, fileHash))

	dw, err := zw.Create(dataEntry)
	if err != nil {
		return nil, fmt.Errorf("create data entry: %w", err)
	}
	dataHash := sha256.New()
	version, err := s.store.Backup(ctx, io.MultiWriter(dw, dataHash))
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Version:       FormatVersion,
		CreatedAt:     time.Now().UTC(),
		ServerVersion: s.version,
		StoreVersion:  version,
		DataChecksum:  hex.EncodeToString(dataHash.Sum(nil)),
		Counts:        counts,
	}
	mw, err := zw.Create(manifestEntry)
	if err != nil {
		return nil, fmt.Errorf("create manifest entry: %w", err)
	}
	if err := json.MarshalWrite(mw, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, err
	}

	result := &BackupResult{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   counts,
		Duration: time.Since(start),
		Checksum: hex.EncodeToString(fileHash.Sum(nil)),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"documents", counts.Total(),
		"duration", result.Duration)

	return result, nil
}

// List returns all available backups, newest first.
func (s *BackupService) List(ctx context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), archiveExt) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			ID:        strings.TrimSuffix(entry.Name(), archiveExt),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	slices.SortFunc(backups, func(a, b BackupInfo) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	return backups, nil
}

// Get returns a backup by ID.
func (s *BackupService) Get(ctx context.Context, id string) (*BackupInfo, error) {
	path := s.GetPath(id)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}

	return &BackupInfo{
		ID:        id,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// Delete removes a backup.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	path := s.GetPath(id)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrBackupNotFound
		}
		return err
	}

	return os.Remove(path)
}

// GetPath returns the file path for a backup ID.
func (s *BackupService) GetPath(id string) string {
	return filepath.Join(s.backupDir, filepath.Base(id)+archiveExt)
}
