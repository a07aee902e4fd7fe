package cascade

import (
	"context"

	"github.com/orbitapp/orbit-server/internal/store"
)

// SetCommit replaces the batch commit step.
func SetCommit(d *Deleter, fn func(context.Context, *store.Batch) error) {
	d.commit = fn
}
