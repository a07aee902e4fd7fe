// Package sse implements Server-Sent Events for change notifications and live listings.
package sse

import (
	"time"

	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/store"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventEntitiesChanged reports entities written by one commit.
	EventEntitiesChanged EventType = "entities.changed"
	// EventTagsChanged reports tag documents or usage counts written by one commit.
	EventTagsChanged EventType = "tags.changed"
	// EventSharesChanged reports share packs created, confirmed, trimmed or deleted.
	EventSharesChanged EventType = "shares.changed"
	// EventInteractionsChanged reports interaction writes.
	EventInteractionsChanged EventType = "interactions.changed"
	// EventBitsChanged reports bit writes.
	EventBitsChanged EventType = "bits.changed"

	// EventImportCompleted is sent to the importing user when a run finishes.
	EventImportCompleted EventType = "import.completed"
	// EventDeleteCompleted is sent to the caller when a bulk delete finishes.
	EventDeleteCompleted EventType = "delete.completed"

	// EventListingSnapshot carries a full replacement of a live listing.
	EventListingSnapshot EventType = "listing.snapshot"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user's clients. Empty means everyone.
	UserID string `json:"-"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// ChangeEventData is the payload of the *.changed events.
type ChangeEventData struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

// SnapshotEventData wraps a listing snapshot with the stream it belongs to.
type SnapshotEventData struct {
	StreamID         string `json:"stream_id"`
	listing.Snapshot `json:",inline"`
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Timestamp: time.Now(),
		Data:      HeartbeatEventData{ServerTime: time.Now()},
	}
}

// NewEvent creates an event of the given type for one user.
func NewEvent(t EventType, userID string, data any) Event {
	return Event{Type: t, UserID: userID, Timestamp: time.Now(), Data: data}
}

// NewSnapshotEvent creates a listing snapshot event.
func NewSnapshotEvent(streamID string, snap listing.Snapshot) Event {
	return Event{
		Type:      EventListingSnapshot,
		Timestamp: time.Now(),
		Data:      SnapshotEventData{StreamID: streamID, Snapshot: snap},
	}
}

var changeTypes = map[string]EventType{
	store.CollectionEntities:     EventEntitiesChanged,
	store.CollectionTags:         EventTagsChanged,
	store.CollectionSharePacks:   EventSharesChanged,
	store.CollectionInteractions: EventInteractionsChanged,
	store.CollectionBits:         EventBitsChanged,
}

// changeEvents turns a store change into one event per affected user.
// Changes with no affected users (tag counts) are broadcast.
func changeEvents(ce store.ChangeEvent) []Event {
	t, ok := changeTypes[ce.Collection]
	if !ok {
		return nil
	}
	data := ChangeEventData{Collection: ce.Collection, IDs: ce.IDs}
	if len(ce.UserIDs) == 0 {
		return []Event{NewEvent(t, "", data)}
	}
	out := make([]Event, 0, len(ce.UserIDs))
	for _, uid := range ce.UserIDs {
		out = append(out, NewEvent(t, uid, data))
	}
	return out
}
