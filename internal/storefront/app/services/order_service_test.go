package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createOrderFor(t *testing.T, store docstore.Store, email string) string {
	t.Helper()
	id, err := store.Create(context.Background(), core.CollectionOrders, docstore.Document{
		"customerName": "Ann",
		"email":        email,
		"items":        []models.OrderItem{{Name: "Gyoza", Price: 6, Quantity: 1}},
		"total":        6.0,
		"status":       models.StatusPending,
		"createdAt":    docstore.ServerTimestamp,
	})
	require.NoError(t, err)
	return id
}

func TestOrderService_ListForEmailNewestFirst(t *testing.T) {
	clk := clock.NewManual(testStart)
	store := docstore.NewMemory(clk)
	svc := NewOrderService(store, logger.Discard())
	ctx := context.Background()

	older := createOrderFor(t, store, "ann@example.com")
	clk.Advance(time.Minute)
	createOrderFor(t, store, "bob@example.com")
	clk.Advance(time.Minute)
	newer := createOrderFor(t, store, "ann@example.com")

	orders, err := svc.ListForEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer, orders[0].ID)
	assert.Equal(t, older, orders[1].ID)
	assert.Equal(t, core.DefaultSpecialInstructions, orders[0].SpecialInstructions)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOrderService_SkipsIncompleteOrders(t *testing.T) {
	store := docstore.NewMemory(clock.NewFixed(testStart))
	svc := NewOrderService(store, logger.Discard())
	ctx := context.Background()

	good := createOrderFor(t, store, "ann@example.com")
	_, err := store.Create(ctx, core.CollectionOrders, docstore.Document{
		"email": "ann@example.com",
		"items": []models.OrderItem{},
	})
	require.NoError(t, err)
	broken, err := store.Create(ctx, core.CollectionOrders, docstore.Document{
		"email":     "ann@example.com",
		"items":     "Ramen x2",
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)

	orders, err := svc.ListForEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, good, orders[0].ID)

	_, err = svc.Get(ctx, broken)
	assert.ErrorIs(t, err, core.ErrPartialData)
}

func TestOrderService_SetStatus(t *testing.T) {
	store := docstore.NewMemory(clock.NewFixed(testStart))
	svc := NewOrderService(store, logger.Discard())
	ctx := context.Background()
	id := createOrderFor(t, store, "ann@example.com")

	tests := []struct {
		name    string
		id      string
		status  string
		wantErr error
	}{
		{name: "complete", id: id, status: models.StatusComplete},
		{name: "back to pending", id: id, status: models.StatusPending},
		{name: "unknown status", id: id, status: "burnt", wantErr: core.ErrInvalidStatus},
		{name: "unknown order", id: "missing", status: models.StatusCancelled, wantErr: core.ErrOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetStatus(ctx, tt.id, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			o, err := svc.Get(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.status, o.Status)
		})
	}

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrOrderNotFound)
}

func TestOrderService_Watch(t *testing.T) {
	store := docstore.NewMemory(clock.NewFixed(testStart))
	svc := NewOrderService(store, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []int
	)
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, func(orders []models.Order) {
			mu.Lock()
			seen = append(seen, len(orders))
			mu.Unlock()
		})
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, time.Second, 5*time.Millisecond)

	createOrderFor(t, store, "ann@example.com")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
