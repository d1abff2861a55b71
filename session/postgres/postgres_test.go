package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/shopmesh/core"
)

var (
	_ core.SessionStore = (*Store)(nil)
	_ core.Sweeper      = (*Store)(nil)
)

func TestNewFromPool_RejectsBadTable(t *testing.T) {
	_, err := NewFromPool(context.Background(), nil, func(o *Options) { o.Table = "x; drop table y" })
	assert.Error(t, err)
}

func TestStore_Postgres(t *testing.T) {
	url := os.Getenv("SHOPMESH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SHOPMESH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	st, err := New(ctx, url, func(o *Options) { o.Table = "shopmesh_test_sessions" })
	require.NoError(t, err)
	defer st.Close()

	sess := core.NewSession("pg-1")
	sess.AppendTurn(core.RoleUser, "watch under 5000")
	require.NoError(t, st.Put(ctx, sess))

	got, err := st.Get(ctx, "pg-1")
	require.NoError(t, err)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "watch under 5000", got.Turns[0].Text)

	n, err := st.DeleteIdle(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = st.Get(ctx, "pg-1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	require.NoError(t, st.Delete(ctx, "pg-1"))
}
