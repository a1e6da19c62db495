package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restaurant-app/internal/xpkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// runStoreSuite checks the behaviour every Store implementation shares.
func runStoreSuite(t *testing.T, newStore func(t *testing.T, clk clock.Clock) Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		ctx := context.Background()

		id, err := s.Create(ctx, "orders", Document{
			"email":     "a@b.c",
			"total":     30,
			"createdAt": ServerTimestamp,
			"items":     []any{map[string]any{"name": "Ramen", "quantity": 2}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Get(ctx, "orders", id)
		require.NoError(t, err)
		assert.Equal(t, "a@b.c", doc["email"])
		assert.Equal(t, float64(30), doc["total"])
		assert.Equal(t, FormatTime(testNow), doc["createdAt"])

		created, ok := ParseTime(doc["createdAt"])
		require.True(t, ok)
		assert.True(t, created.Equal(testNow))
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		_, err := s.Get(context.Background(), "orders", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set merge keeps other fields", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "users", "u1", Document{"firstName": "Ann", "email": "ann@x.io"}, false))
		require.NoError(t, s.Set(ctx, "users", "u1", Document{"phoneNumber": "555"}, true))

		doc, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "Ann", doc["firstName"])
		assert.Equal(t, "555", doc["phoneNumber"])

		require.NoError(t, s.Set(ctx, "users", "u1", Document{"firstName": "Bo"}, false))
		doc, err = s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, Document{"firstName": "Bo"}, doc)
	})

	t.Run("update requires document", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		err := s.Update(context.Background(), "orders", "missing", Document{"status": "complete"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("update if applies once", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		ctx := context.Background()

		id, err := s.Create(ctx, "orders", Document{"status": "pending"})
		require.NoError(t, err)

		applied, err := s.UpdateIf(ctx, "orders", id, []Filter{Absent("startTime")}, Document{"startTime": ServerTimestamp})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.UpdateIf(ctx, "orders", id, []Filter{Absent("startTime")}, Document{"startTime": "later"})
		require.NoError(t, err)
		assert.False(t, applied)

		applied, err = s.UpdateIf(ctx, "orders", id, []Filter{Eq("status", "pending")}, Document{"status": "complete"})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = s.UpdateIf(ctx, "orders", id, []Filter{Eq("status", "pending")}, Document{"status": "complete"})
		require.NoError(t, err)
		assert.False(t, applied)

		doc, err := s.Get(ctx, "orders", id)
		require.NoError(t, err)
		assert.Equal(t, FormatTime(testNow), doc["startTime"])
		assert.Equal(t, "complete", doc["status"])

		_, err = s.UpdateIf(ctx, "orders", "missing", []Filter{Eq("status", "pending")}, Document{"status": "complete"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("query filters and orders", func(t *testing.T) {
		clk := clock.NewManual(testNow)
		s := newStore(t, clk)
		ctx := context.Background()

		var ids []string
		for i, email := range []string{"a@x.io", "b@x.io", "a@x.io"} {
			clk.Set(testNow.Add(time.Duration(i) * time.Minute))
			id, err := s.Create(ctx, "orders", Document{"email": email, "createdAt": ServerTimestamp})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		docs, err := s.Query(ctx, Query{
			Collection: "orders",
			Where:      []Filter{Eq("email", "a@x.io")},
			OrderBy:    "createdAt",
			Desc:       true,
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, ids[2], docs[0].ID)
		assert.Equal(t, ids[0], docs[1].ID)

		docs, err = s.Query(ctx, Query{Collection: "orders", OrderBy: "createdAt", Limit: 1})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, ids[0], docs[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t, clock.NewFixed(testNow))
		ctx := context.Background()

		id, err := s.Create(ctx, "menu", Document{"category": "Soups"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "menu", id))

		_, err = s.Get(ctx, "menu", id)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemory(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, clk clock.Clock) Store {
		return NewMemory(clk)
	})
}

func TestMemory_SubscribeDeliversInitialAndChanges(t *testing.T) {
	s := NewMemory(clock.NewFixed(testNow))
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, Query{Collection: "carts", ID: "u1"})
	require.NoError(t, err)
	defer sub.Close()

	snap := <-sub.C
	require.NoError(t, snap.Err)
	assert.Empty(t, snap.Docs)

	require.NoError(t, s.Set(ctx, "carts", "u1", Document{"items": []any{}}, true))
	snap = <-sub.C
	require.Len(t, snap.Docs, 1)
	assert.Equal(t, "u1", snap.Docs[0].ID)

	// writes to other documents of the collection leave it alone
	require.NoError(t, s.Set(ctx, "carts", "u2", Document{"items": []any{}}, true))
	select {
	case extra := <-sub.C:
		t.Fatalf("write to u2 refreshed the u1 subscription: %+v", extra.Docs)
	default:
	}
}

func TestHub_RefreshesOnlyAffectedSubscriptions(t *testing.T) {
	var (
		mu    sync.Mutex
		loads = map[string]int{}
	)
	h := newHub(func(ctx context.Context, q Query) ([]Doc, error) {
		mu.Lock()
		defer mu.Unlock()
		loads[q.Collection+"/"+q.ID]++
		return nil, nil
	})
	ctx := context.Background()

	for _, q := range []Query{
		{Collection: "carts", ID: "a"},
		{Collection: "carts", ID: "b"},
		{Collection: "carts"},
		{Collection: "orders"},
	} {
		sub, err := h.subscribe(ctx, q)
		require.NoError(t, err)
		defer sub.Close()
	}

	h.notify("carts", "a")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{
		"carts/a": 2,
		"carts/b": 1,
		"carts/":  2,
		"orders/": 1,
	}, loads)
}

func TestParseChange(t *testing.T) {
	tests := []struct {
		payload        string
		collection, id string
	}{
		{payload: changePayload("carts", "u1"), collection: "carts", id: "u1"},
		{payload: "orders", collection: "orders"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			collection, id := parseChange(tt.payload)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestMemory_SubscriptionKeepsLatestSnapshot(t *testing.T) {
	s := NewMemory(clock.NewFixed(testNow))
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, Query{Collection: "orders"})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, "orders", Document{"n": i})
		require.NoError(t, err)
	}

	snap := <-sub.C
	assert.Len(t, snap.Docs, 3)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected extra snapshot with %d docs", len(extra.Docs))
	default:
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	s := NewMemory(clock.NewFixed(testNow))

	sub, err := s.Subscribe(context.Background(), Query{Collection: "orders"})
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	<-sub.C // initial snapshot still buffered
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, s.hub.size())

	// writes after close must not panic on the closed channel
	_, err = s.Create(context.Background(), "orders", Document{"n": 1})
	assert.NoError(t, err)
}

func TestSubscription_ContextCancelReleases(t *testing.T) {
	s := NewMemory(clock.NewFixed(testNow))
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := s.Subscribe(ctx, Query{Collection: "orders"})
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		return s.hub.size() == 0
	}, time.Second, 10*time.Millisecond)

	for range sub.C {
	}
}

func TestSubscribe_RequiresCollection(t *testing.T) {
	s := NewMemory(nil)
	_, err := s.Subscribe(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDecode(t *testing.T) {
	var out struct {
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"createdAt"`
	}
	err := Decode(Document{"email": "x@y.z", "createdAt": FormatTime(testNow)}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x@y.z", out.Email)
	assert.True(t, out.CreatedAt.Equal(testNow))
}

func TestFormatTime_LexicalOrder(t *testing.T) {
	a := FormatTime(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	b := FormatTime(time.Date(2025, 1, 1, 10, 0, 0, 500, time.UTC))
	c := FormatTime(time.Date(2025, 1, 1, 10, 0, 0, 1000, time.UTC))
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}
