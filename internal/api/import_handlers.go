package api

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/http/response"
	"github.com/orbitapp/orbit-server/internal/importer"
	"github.com/orbitapp/orbit-server/internal/service"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "planImport",
		Method:       http.MethodPost,
		Path:         "/api/v1/import/plan",
		Summary:      "Plan import",
		Description:  "Parses a CSV document and lists names that already exist. Nothing is written.",
		Tags:         []string{"Import"},
		MaxBodyBytes: s.maxUpload,
		Security:     bearerSecurity,
	}, s.handlePlanImport)

	huma.Register(s.api, huma.Operation{
		OperationID:  "runImport",
		Method:       http.MethodPost,
		Path:         "/api/v1/import",
		Summary:      "Import entities",
		Description:  "Imports a CSV document in chunks. Existing names are overridden unless listed in create.",
		Tags:         []string{"Import"},
		MaxBodyBytes: s.maxUpload,
		Security:     bearerSecurity,
	}, s.handleRunImport)
}

// === DTOs ===

// PlanImportInput carries the raw CSV document.
type PlanImportInput struct {
	Authorization string `header:"Authorization"`
	RawBody       []byte `contentType:"text/csv"`
}

// PlanImportOutput wraps an import plan for Huma.
type PlanImportOutput struct {
	Body *service.ImportPlan
}

// RunImportInput carries the raw CSV document and duplicate choices.
type RunImportInput struct {
	Authorization string   `header:"Authorization"`
	Create        []string `query:"create,explode" doc:"Duplicate names to insert as new entities instead of overriding"`
	RawBody       []byte   `contentType:"text/csv"`
}

// RunImportOutput wraps an import report for Huma.
type RunImportOutput struct {
	Body *importer.Report
}

// === Handlers ===

func (s *Server) handlePlanImport(ctx context.Context, input *PlanImportInput) (*PlanImportOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := s.services.Import.Plan(ctx, userID, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &PlanImportOutput{Body: plan}, nil
}

func (s *Server) handleRunImport(ctx context.Context, input *RunImportInput) (*RunImportOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	choices := make(map[string]importer.Choice, len(input.Create))
	for _, name := range input.Create {
		choices[name] = importer.ChoiceCreate
	}

	report, err := s.services.Import.Run(ctx, userID, bytes.NewReader(input.RawBody), choices)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &RunImportOutput{Body: report}, nil
}

// handleExport streams the caller's entities as CSV.
// GET /api/v1/export?ids=a,b limits the export; no ids exports everything owned.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	// Buffer so a failure mid-export still produces a clean error response.
	var buf bytes.Buffer
	n, err := s.services.Import.Export(r.Context(), userID, splitValues(r.URL.Query()["ids"]), &buf)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="orbit-export.csv"`)
	w.Header().Set("Cache-Control", CacheNoStore)
	w.Header().Set("X-Export-Count", strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("export write failed", "user_id", userID, "error", err)
	}
}
