package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

type MenuService struct {
	store core.IDocStore
	mylog logger.Logger
}

func NewMenuService(store core.IDocStore, mylog logger.Logger) *MenuService {
	return &MenuService{store: store, mylog: mylog}
}

func (s *MenuService) List(ctx context.Context) ([]models.MenuSection, error) {
	docs, err := s.store.Query(ctx, docstore.Query{Collection: core.CollectionMenu, OrderBy: "category"})
	if err != nil {
		return nil, fmt.Errorf("%w: list menu: %v", core.ErrGatewayUnavailable, err)
	}

	sections := make([]models.MenuSection, 0, len(docs))
	for _, d := range docs {
		var sec models.MenuSection
		if err := docstore.Decode(d.Data, &sec); err != nil {
			s.mylog.Action("menu_section_skipped").Warn("Skipping malformed menu section", "section_id", d.ID, "error", err.Error())
			continue
		}
		sec.ID = d.ID
		sections = append(sections, sec)
	}
	return sections, nil
}

func (s *MenuService) Section(ctx context.Context, id string) (models.MenuSection, error) {
	doc, err := s.store.Get(ctx, core.CollectionMenu, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.MenuSection{}, core.ErrSectionNotFound
		}
		return models.MenuSection{}, fmt.Errorf("%w: get section: %v", core.ErrGatewayUnavailable, err)
	}
	var sec models.MenuSection
	if err := docstore.Decode(doc, &sec); err != nil {
		return models.MenuSection{}, fmt.Errorf("%w: %v", core.ErrSectionNotFound, err)
	}
	sec.ID = id
	return sec, nil
}

// FindItem resolves a menu item into a cart line, so prices always come from
// the menu.
func (s *MenuService) FindItem(ctx context.Context, sectionID, name string) (models.CartLine, error) {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return models.CartLine{}, err
	}
	for _, it := range sec.Items {
		if it.Name == name {
			return models.CartLine{
				Name:     it.Name,
				Price:    it.Price,
				Category: sec.Category,
				Image:    it.Image,
			}, nil
		}
	}
	return models.CartLine{}, core.ErrItemNotFound
}

func (s *MenuService) AddSection(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("%w: category is required", core.ErrInvalidMenuItem)
	}
	id, err := s.store.Create(ctx, core.CollectionMenu, docstore.Document{
		"category": category,
		"items":    []models.MenuItem{},
	})
	if err != nil {
		return "", fmt.Errorf("%w: add section: %v", core.ErrGatewayUnavailable, err)
	}
	s.mylog.Action("menu_section_added").Info("Menu section added", "section_id", id, "category", category)
	return id, nil
}

// RemoveSection deletes a section together with its items.
func (s *MenuService) RemoveSection(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, core.CollectionMenu, id); err != nil {
		return fmt.Errorf("%w: remove section: %v", core.ErrGatewayUnavailable, err)
	}
	s.mylog.Action("menu_section_removed").Info("Menu section removed", "section_id", id)
	return nil
}

func ValidateMenuItem(item models.MenuItem) error {
	switch {
	case strings.TrimSpace(item.Name) == "":
		return fmt.Errorf("%w: name is required", core.ErrInvalidMenuItem)
	case item.Price <= 0:
		return fmt.Errorf("%w: price must be greater than zero", core.ErrInvalidMenuItem)
	case strings.TrimSpace(item.Image) == "":
		return fmt.Errorf("%w: image is required", core.ErrInvalidMenuItem)
	}
	return nil
}

func (s *MenuService) AddItem(ctx context.Context, sectionID string, item models.MenuItem) error {
	item.Name = strings.TrimSpace(item.Name)
	if err := ValidateMenuItem(item); err != nil {
		return err
	}
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return err
	}
	return s.saveItems(ctx, sectionID, append(sec.Items, item))
}

// RemoveItem removes the item at index of the section.
func (s *MenuService) RemoveItem(ctx context.Context, sectionID string, index int) error {
	sec, err := s.Section(ctx, sectionID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(sec.Items) {
		return core.ErrItemNotFound
	}
	items := append(sec.Items[:index:index], sec.Items[index+1:]...)
	return s.saveItems(ctx, sectionID, items)
}

func (s *MenuService) saveItems(ctx context.Context, sectionID string, items []models.MenuItem) error {
	if items == nil {
		items = []models.MenuItem{}
	}
	err := s.store.Update(ctx, core.CollectionMenu, sectionID, docstore.Document{"items": items})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return core.ErrSectionNotFound
		}
		return fmt.Errorf("%w: save menu items: %v", core.ErrGatewayUnavailable, err)
	}
	s.mylog.Action("menu_items_saved").Info("Menu items saved", "section_id", sectionID, "number_of_items", len(items))
	return nil
}
