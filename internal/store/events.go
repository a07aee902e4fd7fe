package store

import (
	"slices"
	"sync"
)

// Collection names used in change events.
const (
	CollectionEntities     = "entities"
	CollectionTags         = "tags"
	CollectionInteractions = "interactions"
	CollectionSharePacks   = "share_packs"
	CollectionBits         = "bits"
)

// EventEmitter receives change notifications after each committed write.
// Store uses this to broadcast changes without depending on the listeners.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Dispatcher fans events out to emitters registered after the store exists.
// Listeners such as the live listing hub depend on the store, so they attach late.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []EventEmitter
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a listener.
func (d *Dispatcher) Register(e EventEmitter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, e)
}

// Emit implements EventEmitter.
func (d *Dispatcher) Emit(event any) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.listeners {
		l.Emit(event)
	}
}

// ChangeEvent describes documents of one collection written by a single commit.
// UserIDs lists every user whose view of those documents may have changed:
// owners and viewers, both before and after the write.
type ChangeEvent struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
	UserIDs    []string `json:"user_ids,omitempty"`
}

// Affects reports whether userID is among the affected users.
func (e ChangeEvent) Affects(userID string) bool {
	return slices.Contains(e.UserIDs, userID)
}

// changeSet accumulates touched documents while a batch runs.
type changeSet struct {
	order  []string
	events map[string]*ChangeEvent
}

func newChangeSet() *changeSet {
	return &changeSet{events: make(map[string]*ChangeEvent)}
}

func (cs *changeSet) touch(collection, id string, users ...string) {
	ev, ok := cs.events[collection]
	if !ok {
		ev = &ChangeEvent{Collection: collection}
		cs.events[collection] = ev
		cs.order = append(cs.order, collection)
	}
	if !slices.Contains(ev.IDs, id) {
		ev.IDs = append(ev.IDs, id)
	}
	for _, u := range users {
		if u != "" && !slices.Contains(ev.UserIDs, u) {
			ev.UserIDs = append(ev.UserIDs, u)
		}
	}
}

func (cs *changeSet) emit(e EventEmitter) {
	if e == nil {
		return
	}
	for _, name := range cs.order {
		e.Emit(*cs.events[name])
	}
}
