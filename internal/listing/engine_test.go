package listing_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/listing"
	"github.com/orbitapp/orbit-server/internal/store"
)

func setupTestEngine(t *testing.T, cfg listing.Config) (*listing.Engine, *store.Store, *store.Dispatcher) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "listing-test-*")
	require.NoError(t, err)

	dispatcher := store.NewDispatcher()
	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, dispatcher)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	return listing.NewEngine(s, cfg, nil), s, dispatcher
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *store.Store, id, owner string, minute int, mutate func(*domain.Entity)) *domain.Entity {
	t.Helper()
	e := &domain.Entity{Type: domain.EntityPerson, Name: "Entity " + id, OwnerID: owner, Tags: domain.TagRefs{}}
	e.ID = id
	e.CreatedAt = epoch.Add(time.Duration(minute) * time.Minute)
	e.UpdatedAt = e.CreatedAt
	if mutate != nil {
		mutate(e)
	}
	require.NoError(t, s.Entities.Create(context.Background(), e))
	return e
}

func share(t *testing.T, s *store.Store, entityID, viewer string) {
	t.Helper()
	require.NoError(t, s.NewBatch().AddViewer(entityID, viewer).Commit(context.Background()))
}

func idsOf(items []*domain.Entity) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

func TestList_MergesOwnedAndShared(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{})
	ctx := context.Background()

	seed(t, s, "own-1", "alice", 1, nil)
	seed(t, s, "own-2", "alice", 3, nil)
	seed(t, s, "bob-1", "bob", 2, nil)
	seed(t, s, "bob-2", "bob", 4, nil)
	share(t, s, "bob-1", "alice")

	res, err := eng.List(ctx, "alice", listing.Request{Audience: listing.AudienceAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"own-2", "bob-1", "own-1"}, idsOf(res.Items))
	assert.False(t, res.HasMore)
	assert.Empty(t, res.Degraded)

	shared, err := eng.List(ctx, "alice", listing.Request{Audience: listing.AudienceShared})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-1"}, idsOf(shared.Items))
}

func TestList_AppliesClientSideFilters(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{})
	ctx := context.Background()

	seed(t, s, "match", "alice", 1, func(e *domain.Entity) {
		e.Tags[domain.CategoryFrom] = []string{"haifa"}
		e.Tags[domain.CategoryField] = []string{"design"}
	})
	seed(t, s, "half", "alice", 2, func(e *domain.Entity) {
		e.Tags[domain.CategoryFrom] = []string{"haifa"}
	})
	seed(t, s, "shared-match", "bob", 3, func(e *domain.Entity) {
		e.Tags[domain.CategoryFrom] = []string{"haifa"}
		e.Tags[domain.CategoryField] = []string{"design", "music"}
	})
	share(t, s, "shared-match", "alice")

	res, err := eng.List(ctx, "alice", listing.Request{Filters: listing.Filters{Tags: domain.TagRefs{
		domain.CategoryFrom:  {"haifa"},
		domain.CategoryField: {"design"},
	}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"shared-match", "match"}, idsOf(res.Items))
}

func TestList_LoadMoreWalksEveryStream(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{PageSize: 4})
	ctx := context.Background()

	for i := range 9 {
		seed(t, s, fmt.Sprintf("own-%02d", i), "alice", i, nil)
	}
	for i := range 3 {
		id := fmt.Sprintf("bob-%02d", i)
		seed(t, s, id, "bob", 100+i, nil)
		share(t, s, id, "alice")
	}

	res, err := eng.List(ctx, "alice", listing.Request{})
	require.NoError(t, err)
	require.True(t, res.HasMore)

	seen := map[string]int{}
	for _, id := range idsOf(res.Items) {
		seen[id]++
	}
	cursor := res.Cursor
	for cursor != "" {
		next, err := eng.LoadMore(ctx, "alice", listing.Request{Cursor: cursor})
		require.NoError(t, err)
		for _, id := range idsOf(next.Items) {
			seen[id]++
		}
		cursor = next.Cursor
	}

	assert.Len(t, seen, 12)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestLoadMore_NoOpInSearchMode(t *testing.T) {
	eng, _, _ := setupTestEngine(t, listing.Config{})

	res, err := eng.LoadMore(context.Background(), "alice", listing.Request{Term: "dana", Cursor: "whatever"})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.True(t, res.Search)
}

func TestList_AllStreamsFailingDegradesToEmpty(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{})
	seed(t, s, "mine", "alice", 1, nil)

	cursor := listing.Cursor{listing.StreamOwned: "!!!"}.Encode()
	res, err := eng.List(context.Background(), "alice", listing.Request{Audience: listing.AudienceOwned, Cursor: cursor})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)
	assert.Equal(t, []listing.StreamName{listing.StreamOwned}, res.Degraded)
}

func TestList_FailedStreamContributesNothing(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{PageSize: 1})
	ctx := context.Background()

	seed(t, s, "own-1", "alice", 1, nil)
	seed(t, s, "own-2", "alice", 2, nil)
	for i, id := range []string{"bob-1", "bob-2"} {
		seed(t, s, id, "bob", 10+i, nil)
		share(t, s, id, "alice")
	}

	first, err := eng.List(ctx, "alice", listing.Request{})
	require.NoError(t, err)
	require.True(t, first.HasMore)

	cursors, err := listing.DecodeCursor(first.Cursor)
	require.NoError(t, err)
	require.Contains(t, cursors, listing.StreamShared)
	cursors[listing.StreamOwned] = "!!!"

	res, err := eng.LoadMore(ctx, "alice", listing.Request{Cursor: cursors.Encode()})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-1"}, idsOf(res.Items))
	assert.Equal(t, []listing.StreamName{listing.StreamOwned}, res.Degraded)
}

func TestList_CancelledContext(t *testing.T) {
	eng, _, _ := setupTestEngine(t, listing.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.List(ctx, "alice", listing.Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_CompleteAcrossPagesAndTagNames(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{})
	ctx := context.Background()

	_, _, err := s.CreateTagIfAbsent(ctx, &domain.Tag{ID: "xylo", Category: domain.CategoryField, Name: "Xylophonist"})
	require.NoError(t, err)

	for i := 1; i <= 250; i++ {
		seed(t, s, fmt.Sprintf("ent-%03d", i), "alice", i, func(e *domain.Entity) {
			if i == 237 {
				e.Tags[domain.CategoryField] = []string{"xylo"}
			}
		})
	}

	res, err := eng.Search(ctx, "alice", listing.Request{Term: "  XYLOPHON "})
	require.NoError(t, err)
	assert.True(t, res.Search)
	assert.Equal(t, []string{"ent-237"}, idsOf(res.Items))

	// The oldest entity sits on the last search page.
	res, err = eng.List(ctx, "alice", listing.Request{Term: "entity ent-001"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ent-001"}, idsOf(res.Items))
}

func TestSearch_MatchesInfoAndSharedStream(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{})
	ctx := context.Background()

	seed(t, s, "bob-1", "bob", 1, func(e *domain.Entity) { e.Info = "Met at the Straße café" })
	share(t, s, "bob-1", "alice")
	seed(t, s, "own-1", "alice", 2, nil)

	res, err := eng.Search(ctx, "alice", listing.Request{Term: "strasse"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob-1"}, idsOf(res.Items))
}

func waitFor(t *testing.T, sub *listing.Subscription, cond func(listing.Snapshot) bool) listing.Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed")
			if cond(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestSubscription_RedeliversOnChange(t *testing.T) {
	eng, s, dispatcher := setupTestEngine(t, listing.Config{PageSize: 5})
	hub := listing.NewHub(eng)
	dispatcher.Register(hub)
	ctx := context.Background()

	seed(t, s, "own-1", "alice", 1, nil)
	seed(t, s, "bob-1", "bob", 2, nil)

	sub, err := hub.Subscribe(ctx, "alice", listing.Request{})
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, 1, hub.Count())

	snap := waitFor(t, sub, func(s listing.Snapshot) bool { return !s.Initializing })
	assert.Equal(t, []string{"own-1"}, idsOf(snap.Items))

	// Sharing bob's entity reaches alice through the viewer stream.
	share(t, s, "bob-1", "alice")
	snap = waitFor(t, sub, func(s listing.Snapshot) bool { return len(s.Items) == 2 })
	assert.Equal(t, []string{"bob-1", "own-1"}, idsOf(snap.Items))

	// Deleting an owned entity removes it from the next delivery.
	require.NoError(t, s.Entities.Delete(ctx, "own-1"))
	snap = waitFor(t, sub, func(s listing.Snapshot) bool { return len(s.Items) == 1 })
	assert.Equal(t, []string{"bob-1"}, idsOf(snap.Items))

	sub.Close()
	assert.Equal(t, 0, hub.Count())
}

func TestSubscription_LoadMoreGrowsWindow(t *testing.T) {
	eng, s, _ := setupTestEngine(t, listing.Config{PageSize: 3})
	ctx := context.Background()

	for i := range 7 {
		seed(t, s, fmt.Sprintf("own-%d", i), "alice", i, nil)
	}

	sub, err := eng.Subscribe(ctx, "alice", listing.Request{Audience: listing.AudienceOwned})
	require.NoError(t, err)
	defer sub.Close()

	snap := waitFor(t, sub, func(s listing.Snapshot) bool { return !s.Initializing })
	assert.Len(t, snap.Items, 3)
	assert.True(t, snap.HasMore)

	sub.LoadMore()
	snap = waitFor(t, sub, func(s listing.Snapshot) bool { return len(s.Items) == 6 && !s.LoadingMore })
	assert.True(t, snap.HasMore)

	sub.LoadMore()
	snap = waitFor(t, sub, func(s listing.Snapshot) bool { return len(s.Items) == 7 })
	assert.False(t, snap.HasMore)
}

func TestSubscribe_RejectsSearch(t *testing.T) {
	eng, _, _ := setupTestEngine(t, listing.Config{})

	_, err := eng.Subscribe(context.Background(), "alice", listing.Request{Term: "dana"})
	assert.ErrorIs(t, err, listing.ErrSearchNotLive)
}
