package dto

import "restaurant-app/internal/storefront/domain/models"

// AddItemRequest names a menu item; price and image come from the menu.
type AddItemRequest struct {
	SectionID string `json:"section_id"`
	Name      string `json:"name"`
}

type CartResponse struct {
	Items []models.CartLine `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
}

type CheckoutRequest struct {
	SpecialInstructions string `json:"special_instructions"`
	Confirmed           bool   `json:"confirmed"`
}

type CheckoutResponse struct {
	OrderID string `json:"order_id"`
}
