package cascade_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitapp/orbit-server/internal/cascade"
	"github.com/orbitapp/orbit-server/internal/domain"
	"github.com/orbitapp/orbit-server/internal/store"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

type fixture struct {
	store   *store.Store
	tags    *tagging.Registry
	deleter *cascade.Deleter
}

func setupFixture(t *testing.T, retry cascade.RetryPolicy) *fixture {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "cascade-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "test.db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	})

	tags := tagging.NewRegistry(s, nil)
	return &fixture{store: s, tags: tags, deleter: cascade.NewDeleter(s, tags, retry, nil)}
}

func (f *fixture) entity(t *testing.T, id, owner string, mutate func(*domain.Entity)) {
	t.Helper()
	e := &domain.Entity{Type: domain.EntityPerson, Name: id, OwnerID: owner, Tags: domain.TagRefs{}}
	e.ID = id
	e.CreatedAt = time.Now()
	if mutate != nil {
		mutate(e)
	}
	b := f.store.NewBatch().CreateEntity(e)
	f.tags.QueueRefs(b, nil, e.Tags)
	require.NoError(t, b.Commit(context.Background()))
}

func (f *fixture) pack(t *testing.T, id, sender string, entityIDs ...string) {
	t.Helper()
	p := &domain.SharePack{SenderID: sender, RecipientID: "carol", EntityIDs: entityIDs}
	p.ID = id
	require.NoError(t, f.store.SharePacks.Create(context.Background(), p))
}

func (f *fixture) interaction(t *testing.T, id, owner string, refs ...string) {
	t.Helper()
	i := &domain.Interaction{OwnerID: owner, EntityRefs: refs, Type: "call", Date: time.Now()}
	i.ID = id
	require.NoError(t, f.store.Interactions.Create(context.Background(), i))
}

func (f *fixture) bit(t *testing.T, id, entityID, author string) {
	t.Helper()
	b := &domain.Bit{EntityID: entityID, AuthorID: author, Text: "hello"}
	b.ID = id
	require.NoError(t, f.store.Bits.Create(context.Background(), b))
}

func (f *fixture) exists(t *testing.T, get func() error) bool {
	t.Helper()
	err := get()
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, store.ErrNotFound)
	return false
}

func TestDeleteEntities_CascadeCompleteness(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{})
	ctx := context.Background()

	f.entity(t, "x", "alice", func(e *domain.Entity) {
		e.Tags[domain.CategoryCharacter] = []string{"kind"}
	})
	f.entity(t, "y", "alice", func(e *domain.Entity) { e.Relations = []string{"x", "z"} })
	f.entity(t, "z", "alice", nil)
	f.entity(t, "bob-1", "bob", func(e *domain.Entity) { e.Relations = []string{"x"} })

	f.pack(t, "pack-only-x", "alice", "x")
	f.pack(t, "pack-mixed", "alice", "x", "z")
	f.pack(t, "pack-bob", "bob", "x")

	f.interaction(t, "int-only-x", "alice", "x")
	f.interaction(t, "int-mixed", "alice", "x", "z")
	f.interaction(t, "int-bob", "bob", "x")

	f.bit(t, "bit-alice", "x", "alice")
	f.bit(t, "bit-bob", "x", "bob")

	res, err := f.deleter.DeleteEntities(ctx, "alice", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, &cascade.Result{Deleted: 1}, res)

	assert.False(t, f.exists(t, func() error { _, err := f.store.Entities.Get(ctx, "x"); return err }))

	y, err := f.store.Entities.Get(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, y.Relations)

	bob, err := f.store.Entities.Get(ctx, "bob-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, bob.Relations, "non-owned relations are untouched")

	assert.False(t, f.exists(t, func() error { _, err := f.store.SharePacks.Get(ctx, "pack-only-x"); return err }))
	mixed, err := f.store.SharePacks.Get(ctx, "pack-mixed")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, mixed.EntityIDs)
	assert.True(t, f.exists(t, func() error { _, err := f.store.SharePacks.Get(ctx, "pack-bob"); return err }))

	assert.False(t, f.exists(t, func() error { _, err := f.store.Interactions.Get(ctx, "int-only-x"); return err }))
	im, err := f.store.Interactions.Get(ctx, "int-mixed")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, im.EntityRefs)
	assert.True(t, f.exists(t, func() error { _, err := f.store.Interactions.Get(ctx, "int-bob"); return err }))

	assert.False(t, f.exists(t, func() error { _, err := f.store.Bits.Get(ctx, "bit-alice"); return err }))
	assert.True(t, f.exists(t, func() error { _, err := f.store.Bits.Get(ctx, "bit-bob"); return err }))

	tag, err := f.store.GetTag(ctx, domain.CategoryCharacter, "kind")
	require.NoError(t, err)
	assert.Equal(t, 0, tag.UsageCount)
}

func TestDeleteEntities_NonEmptyInvariant(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{})
	ctx := context.Background()

	f.entity(t, "a", "alice", nil)
	f.entity(t, "b", "alice", nil)
	f.pack(t, "pack-ab", "alice", "a", "b")
	f.interaction(t, "int-ab", "alice", "a", "b")

	res, err := f.deleter.DeleteEntities(ctx, "alice", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	for p, err := range f.store.SharePacks.List(ctx) {
		require.NoError(t, err)
		assert.NotEmpty(t, p.EntityIDs)
	}
	for i, err := range f.store.Interactions.List(ctx) {
		require.NoError(t, err)
		assert.NotEmpty(t, i.EntityRefs)
	}
	assert.False(t, f.exists(t, func() error { _, err := f.store.SharePacks.Get(ctx, "pack-ab"); return err }))
	assert.False(t, f.exists(t, func() error { _, err := f.store.Interactions.Get(ctx, "int-ab"); return err }))
}

func TestDeleteEntities_AggregatesOutcomes(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{})
	ctx := context.Background()

	f.entity(t, "mine", "alice", nil)
	f.entity(t, "theirs", "bob", nil)

	res, err := f.deleter.DeleteEntities(ctx, "alice", []string{"mine", "theirs", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 1, res.SkippedNotOwner)
	assert.Equal(t, 0, res.Errors)

	theirs, err := f.store.Entities.Get(ctx, "theirs")
	require.NoError(t, err)
	assert.Equal(t, "bob", theirs.OwnerID)
}

func TestDeleteEntities_FailuresAreCountedNotFatal(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{Attempts: 1, Backoff: time.Millisecond})
	f.entity(t, "a", "alice", nil)
	f.entity(t, "b", "alice", nil)

	require.NoError(t, f.store.Close())

	res, err := f.deleter.DeleteEntities(context.Background(), "alice", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, []string{"a", "b"}, res.Failed)
}

func TestDeleteEntities_RetriesTransientFailure(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{Attempts: 1, Backoff: time.Millisecond})
	f.entity(t, "a", "alice", nil)

	calls := 0
	cascade.SetCommit(f.deleter, func(ctx context.Context, b *store.Batch) error {
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return b.Commit(ctx)
	})

	res, err := f.deleter.DeleteEntities(context.Background(), "alice", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Errors)
	assert.Empty(t, res.Failed)

	_, err = f.store.Entities.Get(context.Background(), "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteEntities_GivesUpAfterAttempts(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{Attempts: 2, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond})
	f.entity(t, "a", "alice", nil)

	calls := 0
	cascade.SetCommit(f.deleter, func(context.Context, *store.Batch) error {
		calls++
		return errors.New("still failing")
	})

	res, err := f.deleter.DeleteEntities(context.Background(), "alice", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, []string{"a"}, res.Failed)
}

func TestDeleteEntities_LargeAttemptCountStillWaits(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{Attempts: 80, Backoff: time.Millisecond, MaxBackoff: time.Millisecond})
	f.entity(t, "a", "alice", nil)

	calls := 0
	cascade.SetCommit(f.deleter, func(ctx context.Context, b *store.Batch) error {
		calls++
		if calls < 70 {
			return errors.New("transient")
		}
		return b.Commit(ctx)
	})

	start := time.Now()
	res, err := f.deleter.DeleteEntities(context.Background(), "alice", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	// 69 waits of at least half the capped interval each.
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDeleteEntities_NotOwnerIsNotRetried(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	f.entity(t, "theirs", "bob", nil)

	calls := 0
	cascade.SetCommit(f.deleter, func(ctx context.Context, b *store.Batch) error {
		calls++
		return b.Commit(ctx)
	})

	res, err := f.deleter.DeleteEntities(context.Background(), "alice", []string{"theirs"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedNotOwner)
	assert.Zero(t, calls)
}

func TestDeleteEntities_StopsBetweenUnitsOnCancel(t *testing.T) {
	f := setupFixture(t, cascade.RetryPolicy{})
	f.entity(t, "a", "alice", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.deleter.DeleteEntities(ctx, "alice", []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Deleted)
}
