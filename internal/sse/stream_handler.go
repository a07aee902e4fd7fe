package sse

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/orbitapp/orbit-server/internal/listing"
)

// Subscriber opens live listings.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, req listing.Request) (*listing.Subscription, error)
}

// ListingHandler serves live listings at GET /api/v1/entities/stream.
//
// The first event names the stream id; every following listing.snapshot
// event is a full replacement of the listing.
type ListingHandler struct {
	subscriber        Subscriber
	streams           *Streams
	logger            *slog.Logger
	heartbeatInterval time.Duration
}

// NewListingHandler creates a handler for live listings.
func NewListingHandler(subscriber Subscriber, streams *Streams, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		subscriber:        subscriber,
		streams:           streams,
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// ServeHTTP opens a subscription for userID and streams its snapshots.
// Subscribe errors (a search term) are returned before any bytes are written.
func (h *ListingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request, userID string, req listing.Request) error {
	if r.Context().Err() != nil {
		return nil
	}

	sub, err := h.subscriber.Subscribe(r.Context(), userID, req)
	if err != nil {
		return err
	}
	st, err := h.streams.Add(userID, sub)
	if err != nil {
		sub.Close()
		return err
	}
	defer h.streams.Remove(st)

	rc, ok := startStream(w, h.logger)
	if !ok {
		return nil
	}

	streamLogger := h.logger.With(slog.String("stream_id", st.ID), slog.String("user_id", userID))

	if err := writeEvent(w, rc, h.logger, string(EventConnected), map[string]string{
		"stream_id": st.ID,
		"message":   "listing stream established",
	}); err != nil {
		streamLogger.Warn("failed to send initial connection message", slog.String("error", err.Error()))
		return nil
	}

	heartbeatTicker := time.NewTicker(h.heartbeatInterval)
	defer heartbeatTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				streamLogger.Info("subscription ended")
				return nil
			}
			if err := writeEvent(w, rc, h.logger, string(EventListingSnapshot), NewSnapshotEvent(st.ID, snap)); err != nil {
				streamLogger.Info("client disconnected during send")
				return nil
			}

		case <-heartbeatTicker.C:
			heartbeat := NewHeartbeatEvent()
			if err := writeEvent(w, rc, h.logger, string(heartbeat.Type), heartbeat); err != nil {
				streamLogger.Info("client disconnected during heartbeat")
				return nil
			}

		case <-ctx.Done():
			streamLogger.Info("client context canceled")
			return nil
		}
	}
}
