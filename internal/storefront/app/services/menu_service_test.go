package services

import (
	"context"
	"testing"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuService_SectionsAndItems(t *testing.T) {
	svc := NewMenuService(docstore.NewMemory(clock.NewFixed(testStart)), logger.Discard())
	ctx := context.Background()

	noodles, err := svc.AddSection(ctx, "Noodles")
	require.NoError(t, err)
	sides, err := svc.AddSection(ctx, " Appetizers ")
	require.NoError(t, err)

	require.NoError(t, svc.AddItem(ctx, noodles, models.MenuItem{Name: "Ramen", Price: 12, Image: "ramen.png"}))
	require.NoError(t, svc.AddItem(ctx, noodles, models.MenuItem{Name: "Udon", Price: 11, Image: "udon.png"}))
	require.NoError(t, svc.AddItem(ctx, sides, models.MenuItem{Name: "Gyoza", Price: 6, Image: "gyoza.png"}))

	menu, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 2)
	assert.Equal(t, "Appetizers", menu[0].Category)
	assert.Equal(t, "Noodles", menu[1].Category)
	assert.Len(t, menu[1].Items, 2)

	line, err := svc.FindItem(ctx, noodles, "Udon")
	require.NoError(t, err)
	assert.Equal(t, models.CartLine{Name: "Udon", Price: 11, Category: "Noodles", Image: "udon.png"}, line)

	_, err = svc.FindItem(ctx, noodles, "Gyoza")
	assert.ErrorIs(t, err, core.ErrItemNotFound)
	_, err = svc.FindItem(ctx, "missing", "Udon")
	assert.ErrorIs(t, err, core.ErrSectionNotFound)

	require.NoError(t, svc.RemoveItem(ctx, noodles, 0))
	sec, err := svc.Section(ctx, noodles)
	require.NoError(t, err)
	require.Len(t, sec.Items, 1)
	assert.Equal(t, "Udon", sec.Items[0].Name)
	assert.ErrorIs(t, svc.RemoveItem(ctx, noodles, 5), core.ErrItemNotFound)

	require.NoError(t, svc.RemoveSection(ctx, sides))
	menu, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, noodles, menu[0].ID)
}

func TestMenuService_InvalidItems(t *testing.T) {
	svc := NewMenuService(docstore.NewMemory(clock.NewFixed(testStart)), logger.Discard())
	ctx := context.Background()
	id, err := svc.AddSection(ctx, "Noodles")
	require.NoError(t, err)

	_, err = svc.AddSection(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrInvalidMenuItem)

	tests := []struct {
		name string
		item models.MenuItem
	}{
		{name: "no name", item: models.MenuItem{Name: " ", Price: 5, Image: "x.png"}},
		{name: "zero price", item: models.MenuItem{Name: "Tea", Image: "x.png"}},
		{name: "negative price", item: models.MenuItem{Name: "Tea", Price: -1, Image: "x.png"}},
		{name: "no image", item: models.MenuItem{Name: "Tea", Price: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.AddItem(ctx, id, tt.item), core.ErrInvalidMenuItem)
		})
	}

	err = svc.AddItem(ctx, "missing", models.MenuItem{Name: "Tea", Price: 2, Image: "tea.png"})
	assert.ErrorIs(t, err, core.ErrSectionNotFound)

	sec, err := svc.Section(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, sec.Items)
}
