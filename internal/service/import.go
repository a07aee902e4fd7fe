package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/sse"
)

// ImportPlan is the pre-flight result of an import document.
type ImportPlan struct {
	Rows       int                  `json:"rows"`
	Duplicates []importer.Duplicate `json:"duplicates"`
}

// ImportService runs CSV imports and exports.
type ImportService struct {
	importer   *importer.Importer
	sseManager *sse.Manager
	logger     *slog.Logger
}

// NewImportService creates a new import service.
func NewImportService(im *importer.Importer, sseManager *sse.Manager, logger *slog.Logger) *ImportService {
	return &ImportService{importer: im, sseManager: sseManager, logger: logger}
}

// Plan parses a document and reports duplicate names that need a choice.
// Nothing is written.
func (s *ImportService) Plan(ctx context.Context, userID string, r io.Reader) (*ImportPlan, error) {
	rows, err := importer.Parse(r)
	if err != nil {
		return nil, err
	}
	dups, err := s.importer.Plan(ctx, userID, rows)
	if err != nil {
		return nil, err
	}
	if dups == nil {
		dups = []importer.Duplicate{}
	}
	return &ImportPlan{Rows: len(rows), Duplicates: dups}, nil
}

// Run parses and imports a document. A malformed document fails before any write.
func (s *ImportService) Run(ctx context.Context, userID string, r io.Reader, choices map[string]importer.Choice) (*importer.Report, error) {
	rows, err := importer.Parse(r)
	if err != nil {
		s.logger.Warn("import rejected", "user_id", userID, "error", err)
		return nil, err
	}
	report, err := s.importer.Run(ctx, userID, rows, choices)
	if report != nil && s.sseManager != nil {
		s.sseManager.EmitToUser(userID, sse.NewEvent(sse.EventImportCompleted, userID, report))
	}
	return report, err
}

// Export writes the requested entities, or all the user owns, as CSV.
func (s *ImportService) Export(ctx context.Context, userID string, ids []string, w io.Writer) (int, error) {
	return s.importer.Export(ctx, userID, ids, w)
}
