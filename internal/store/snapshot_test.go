package store_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount_SkipsIndexKeys(t *testing.T) {
	s := setupTestStore(t, nil)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Entities.Create(ctx, newEntity(id, "alice", i)))
	}

	c, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Entities)
	assert.Zero(t, c.Interactions)
	assert.Equal(t, 3, c.Total())
}

func TestBackupDropAllLoad(t *testing.T) {
	s := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Entities.Create(ctx, newEntity("a", "alice", 0)))
	require.NoError(t, s.Entities.Create(ctx, newEntity("b", "alice", 1)))

	var buf bytes.Buffer
	version, err := s.Backup(ctx, &buf)
	require.NoError(t, err)
	assert.NotZero(t, version)
	assert.NotZero(t, buf.Len())

	require.NoError(t, s.DropAll())
	c, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.Total())

	require.NoError(t, s.Load(ctx, bytes.NewReader(buf.Bytes())))

	got, err := s.Entities.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)

	c, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Entities)

	related, err := s.EntitiesRelatedTo(ctx, "alice", "b")
	require.NoError(t, err)
	assert.Empty(t, related)
}
