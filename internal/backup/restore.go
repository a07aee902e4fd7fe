package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/orbitapp/orbit-server/internal/store"
)

// RestoreService restores from backups.
type RestoreService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRestoreService creates a RestoreService.
func NewRestoreService(s *store.Store, logger *slog.Logger) *RestoreService {
	return &RestoreService{store: s, logger: logger}
}

// Restore validates a backup file and loads it into the store.
// Live listings are not notified; run it with the server stopped.
func (s *RestoreService) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()
	if opts.Mode == "" {
		opts.Mode = RestoreModeFull
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("unknown restore mode %q", opts.Mode)
	}

	s.logger.Info("starting restore", "path", path, "mode", opts.Mode, "dry_run", opts.DryRun)

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()

	manifest, err := readManifest(zr)
	if err != nil {
		return nil, err
	}
	if err := verifyData(zr, manifest); err != nil {
		return nil, err
	}

	result := &RestoreResult{
		Mode:     opts.Mode,
		DryRun:   opts.DryRun,
		Expected: manifest.Counts,
	}
	if opts.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	if opts.Mode == RestoreModeFull {
		if err := s.store.DropAll(); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
	}

	rc, err := zr.Open(dataEntry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	defer rc.Close()
	if err := s.store.Load(ctx, rc); err != nil {
		return nil, err
	}

	if result.Restored, err = s.store.Count(ctx); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	result.Duration = time.Since(start)

	s.logger.Info("restore complete",
		"documents", result.Restored.Total(),
		"expected", result.Expected.Total(),
		"duration", result.Duration)

	return result, nil
}

// Validate checks a backup without importing.
func (s *RestoreService) Validate(ctx context.Context, path string) (*ValidationResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("failed to open backup: %v", err)},
		}, nil
	}
	defer zr.Close()

	result := &ValidationResult{Valid: true}

	manifest, err := readManifest(zr)
	if manifest != nil {
		result.Manifest = manifest
	}
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	if err := verifyData(zr, manifest); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	return result, nil
}

// readManifest decodes and version-checks the manifest. The manifest is
// returned alongside a version error so callers can report it.
func readManifest(zr *zip.ReadCloser) (*Manifest, error) {
	rc, err := zr.Open(manifestEntry)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrInvalidManifest
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	defer rc.Close()

	var manifest Manifest
	if err := json.UnmarshalRead(rc, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if manifest.Version != FormatVersion {
		return &manifest, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, manifest.Version, FormatVersion)
	}
	return &manifest, nil
}

// verifyData compares the store entry against the manifest checksum.
func verifyData(zr *zip.ReadCloser, manifest *Manifest) error {
	rc, err := zr.Open(dataEntry)
	if err != nil {
		return fmt.Errorf("%w: missing %s", ErrCorruptedBackup, dataEntry)
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	if hex.EncodeToString(h.Sum(nil)) != manifest.DataChecksum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptedBackup)
	}
	return nil
}
