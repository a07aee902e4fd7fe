package sse

import (
	"log/slog"
	"sync"
	"time"

	"github.com/orbitapp/orbit-server/internal/id"
	"github.com/orbitapp/orbit-server/internal/listing"
)

// Stream is one open live listing, addressable by id so a client can ask it
// to grow its window over a separate request.
type Stream struct {
	ID        string
	UserID    string
	Sub       *listing.Subscription
	CreatedAt time.Time
}

// Streams tracks open live listings by id.
type Streams struct {
	streams map[string]*Stream
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewStreams creates an empty registry.
func NewStreams(logger *slog.Logger) *Streams {
	return &Streams{
		streams: make(map[string]*Stream),
		logger:  logger,
	}
}

// Add registers sub and returns its stream.
// The caller must call Remove when the connection ends.
func (s *Streams) Add(userID string, sub *listing.Subscription) (*Stream, error) {
	streamID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}
	st := &Stream{ID: streamID, UserID: userID, Sub: sub, CreatedAt: time.Now()}

	s.mu.Lock()
	s.streams[streamID] = st
	total := len(s.streams)
	s.mu.Unlock()

	s.logger.Debug("listing stream opened",
		slog.String("stream_id", streamID),
		slog.String("user_id", userID),
		slog.Int("total_streams", total))
	return st, nil
}

// Remove drops a stream and closes its subscription.
func (s *Streams) Remove(st *Stream) {
	s.mu.Lock()
	delete(s.streams, st.ID)
	s.mu.Unlock()

	st.Sub.Close()

	s.logger.Debug("listing stream closed",
		slog.String("stream_id", st.ID),
		slog.Duration("duration", time.Since(st.CreatedAt)))
}

// LoadMore grows the window of a stream owned by userID.
// Returns false if no such stream is open.
func (s *Streams) LoadMore(userID, streamID string) bool {
	s.mu.RLock()
	st, ok := s.streams[streamID]
	s.mu.RUnlock()

	if !ok || st.UserID != userID {
		return false
	}
	st.Sub.LoadMore()
	return true
}

// Count returns the number of open streams.
func (s *Streams) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

// CloseAll closes every stream (used during shutdown).
func (s *Streams) CloseAll() {
	s.mu.Lock()
	streams := s.streams
	s.streams = make(map[string]*Stream)
	s.mu.Unlock()

	for _, st := range streams {
		st.Sub.Close()
	}
}
