package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/orbitapp/orbit-server/internal/tagging"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcileTags",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/reconcile-tags",
		Summary:     "Reconcile tag usage",
		Description: "Recounts tag references from a full entity scan and repairs drifted usage counts",
		Tags:        []string{"Admin"},
		Security:    bearerSecurity,
	}, s.handleReconcileTags)
}

// ReconcileTagsInput contains parameters for a reconcile run.
type ReconcileTagsInput struct {
	Authorization string `header:"Authorization"`
}

// ReconcileTagsOutput wraps a reconcile report for Huma.
type ReconcileTagsOutput struct {
	Body *tagging.ReconcileReport
}

func (s *Server) handleReconcileTags(ctx context.Context, _ *ReconcileTagsInput) (*ReconcileTagsOutput, error) {
	userID, err := s.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.services.Tag.Reconcile(ctx, userID)
	if err != nil {
		return nil, s.handlerError(err)
	}
	return &ReconcileTagsOutput{Body: report}, nil
}
