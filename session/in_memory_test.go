package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
)

// Interface compliance (compile-time assertion)
var (
	_ core.SessionStore = (*InMemoryStore)(nil)
	_ core.Sweeper      = (*InMemoryStore)(nil)
)

func TestInMemoryStore_GetUnknown(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Get(context.Background(), "nope")

	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_PutGetClones(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	sess := core.NewSession("s1")
	sess.AppendTurn(core.RoleUser, "hi")

	require.NoError(t, s.Put(ctx, sess))
	sess.AppendTurn(core.RoleAssistant, "mutated after put")

	got, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.Turns, 1)

	got.Turns[0].Text = "changed"
	again, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Turns[0].Text)
}

func TestInMemoryStore_DeleteAndDeleteIdle(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	old := core.NewSession("old")
	old.Updated = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Put(ctx, old))
	require.NoError(t, s.Put(ctx, core.NewSession("fresh")))
	require.NoError(t, s.Put(ctx, core.NewSession("gone")))

	require.NoError(t, s.Delete(ctx, "gone"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	n, err := s.DeleteIdle(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.Len())

	_, err = s.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestInMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewInMemoryStore().Put(ctx, core.NewSession("x"))

	assert.ErrorIs(t, err, context.Canceled)
}
