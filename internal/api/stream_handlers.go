package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orbitapp/orbit-server/internal/http/response"
)

// handleEvents serves the per-user change feed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}
	s.sseHandler.ServeHTTP(w, r, userID)
}

// handleEntityStream opens a live listing. Accepts the listing query of
// GET /api/v1/entities except q, since search results are not live.
func (s *Server) handleEntityStream(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	q, err := listingQueryFromValues(r.URL.Query())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	req, err := q.Request()
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	if err := s.listingHandler.ServeHTTP(w, r, userID, req); err != nil {
		response.HandleError(w, err, s.logger)
	}
}

// handleStreamLoadMore asks an open live listing for its next page.
// The page arrives as a snapshot on the stream itself.
func (s *Server) handleStreamLoadMore(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserID(r.Context())
	if err != nil {
		response.Unauthorized(w, "Authentication required", s.logger)
		return
	}

	streamID := chi.URLParam(r, "id")
	if !s.streams.LoadMore(userID, streamID) {
		response.NotFound(w, "stream not found", s.logger)
		return
	}
	response.Accepted(w, map[string]string{"stream_id": streamID}, s.logger)
}
