package dto

import "restaurant-app/internal/storefront/domain/models"

type MenuSectionResponse struct {
	ID       string            `json:"id"`
	Category string            `json:"category"`
	Items    []models.MenuItem `json:"items"`
}

func NewMenuResponse(sections []models.MenuSection) []MenuSectionResponse {
	out := make([]MenuSectionResponse, 0, len(sections))
	for _, s := range sections {
		items := s.Items
		if items == nil {
			items = []models.MenuItem{}
		}
		out = append(out, MenuSectionResponse{ID: s.ID, Category: s.Category, Items: items})
	}
	return out
}

type SectionRequest struct {
	Category string `json:"category"`
}

type MenuItemRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type CreatedResponse struct {
	ID string `json:"id"`
}
