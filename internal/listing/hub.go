package listing

import (
	"context"
	"sync"

	"github.com/orbitapp/orbit-server/internal/store"
)

// Hub routes store change events to the live subscriptions of affected users.
// It implements store.EventEmitter.
type Hub struct {
	engine *Engine

	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates a hub serving subscriptions from engine.
func NewHub(engine *Engine) *Hub {
	return &Hub{
		engine: engine,
		subs:   make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe opens a live listing registered for change notifications.
func (h *Hub) Subscribe(ctx context.Context, userID string, req Request) (*Subscription, error) {
	return h.engine.subscribe(ctx, userID, req, func(sub *Subscription) {
		sub.onClose = func() { h.remove(sub) }

		h.mu.Lock()
		defer h.mu.Unlock()
		if h.subs[userID] == nil {
			h.subs[userID] = make(map[*Subscription]struct{})
		}
		h.subs[userID][sub] = struct{}{}
	})
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
}

// Count returns the number of open subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Emit implements store.EventEmitter. It never blocks the writer.
func (h *Hub) Emit(event any) {
	ev, ok := event.(store.ChangeEvent)
	if !ok || ev.Collection != store.CollectionEntities {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range ev.UserIDs {
		for sub := range h.subs[uid] {
			sub.Notify(ev)
		}
	}
}
