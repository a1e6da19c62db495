package docstore

import (
	"context"
	"testing"
	"time"

	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)

	runStoreSuite(t, func(t *testing.T, clk clock.Clock) Store {
		testutil.TruncateAll(t, ctx, pool)
		return NewPostgres(pool, clk)
	})
}

func TestPostgres_ListenRefreshesSubscriptions(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	s := NewPostgres(pool, clock.NewFixed(testNow))

	listenErr := make(chan error, 1)
	go func() { listenErr <- s.Listen(ctx) }()

	sub, err := s.Subscribe(ctx, Query{Collection: "orders", OrderBy: "createdAt", Desc: true})
	require.NoError(t, err)
	defer sub.Close()

	snap := <-sub.C
	require.NoError(t, snap.Err)
	assert.Empty(t, snap.Docs)

	// the listener may not be registered yet, so keep writing until a change arrives
	deadline := time.After(5 * time.Second)
	for {
		_, err := s.Create(ctx, "orders", Document{"status": "pending", "createdAt": ServerTimestamp})
		require.NoError(t, err)

		select {
		case snap = <-sub.C:
			require.NoError(t, snap.Err)
			assert.NotEmpty(t, snap.Docs)
			cancel()
			assert.NoError(t, <-listenErr)
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no snapshot after write")
		}
	}
}
