package sse

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/store"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.EventChan:
		t.Fatalf("unexpected %s event", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_FiltersByUser(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	go m.Start(t.Context())

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	bob, err := m.Connect("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ClientCount())

	m.EmitToUser("alice", NewEvent(EventImportCompleted, "alice", nil))
	assert.Equal(t, EventImportCompleted, receive(t, alice).Type)
	assertNothing(t, bob)

	m.Emit(NewEvent(EventTagsChanged, "", nil))
	assert.Equal(t, EventTagsChanged, receive(t, alice).Type)
	assert.Equal(t, EventTagsChanged, receive(t, bob).Type)

	m.Disconnect(bob.ID)
	assert.Equal(t, 1, m.ClientCount())
	_, open := <-bob.EventChan
	assert.False(t, open)
}

func TestManager_SplitsChangeEvents(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	go m.Start(t.Context())

	alice, err := m.Connect("alice")
	require.NoError(t, err)
	bob, err := m.Connect("bob")
	require.NoError(t, err)
	carol, err := m.Connect("carol")
	require.NoError(t, err)

	m.Emit(store.ChangeEvent{Collection: store.CollectionEntities, IDs: []string{"ent-1"}, UserIDs: []string{"alice", "bob"}})

	for _, c := range []*Client{alice, bob} {
		ev := receive(t, c)
		assert.Equal(t, EventEntitiesChanged, ev.Type)
		data, ok := ev.Data.(ChangeEventData)
		require.True(t, ok)
		assert.Equal(t, []string{"ent-1"}, data.IDs)
	}
	assertNothing(t, carol)

	m.Emit(store.ChangeEvent{Collection: "unknown", IDs: []string{"x"}})
	assertNothing(t, alice)
}

func TestManager_ShutdownIsIdempotent(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	c, err := m.Connect("alice")
	require.NoError(t, err)

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, m.Shutdown(shutdownCtx))
	require.NoError(t, m.Shutdown(shutdownCtx))

	// Emitting after shutdown is dropped, not a panic.
	m.Emit(NewEvent(EventTagsChanged, "", nil))

	<-c.Done
	assert.Equal(t, 0, m.ClientCount())
}

func TestStreams_LoadMoreChecksOwner(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "sse-test-*")
	require.NoError(t, err)
	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	engine := listing.NewEngine(s, listing.DefaultConfig(), nil)
	sub, err := engine.Subscribe(t.Context(), "alice", listing.Request{})
	require.NoError(t, err)

	streams := NewStreams(slog.New(slog.DiscardHandler))
	st, err := streams.Add("alice", sub)
	require.NoError(t, err)
	assert.Equal(t, 1, streams.Count())

	assert.True(t, streams.LoadMore("alice", st.ID))
	assert.False(t, streams.LoadMore("bob", st.ID))
	assert.False(t, streams.LoadMore("alice", "client-missing"))

	streams.Remove(st)
	assert.Equal(t, 0, streams.Count())
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}
