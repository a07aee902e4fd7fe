package store

import (
	"context"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func TestConflictSchedule_BoundedAndCapped(t *testing.T) {
	b := conflictSchedule(context.Background())
	for range maxConflictRetries {
		wait := b.NextBackOff()
		assert.NotEqual(t, backoff.Stop, wait)
		assert.LessOrEqual(t, wait, maxConflictBackoff*3/2)
	}
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestConflictSchedule_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, backoff.Stop, conflictSchedule(ctx).NextBackOff())
}
