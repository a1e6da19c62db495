package dto

import (
	"time"

	"restaurant-app/internal/storefront/domain/models"
)

type OrderItemResponse struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type OrderResponse struct {
	ID                  string              `json:"id"`
	CustomerName        string              `json:"customer_name"`
	Email               string              `json:"email"`
	Items               []OrderItemResponse `json:"items"`
	Total               float64             `json:"total"`
	SpecialInstructions string              `json:"special_instructions"`
	Status              string              `json:"status"`
	CreatedAt           time.Time           `json:"created_at"`
	StartTime           *time.Time          `json:"start_time,omitempty"`
}

func NewOrderResponse(o models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	return OrderResponse{
		ID:                  o.ID,
		CustomerName:        o.CustomerName,
		Email:               o.Email,
		Items:               items,
		Total:               o.Total,
		SpecialInstructions: o.SpecialInstructions,
		Status:              o.Status,
		CreatedAt:           o.CreatedAt,
		StartTime:           o.StartTime,
	}
}

func NewOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

type StatusRequest struct {
	Status string `json:"status"`
}

type TrackingEvent struct {
	OrderID  string         `json:"order_id"`
	Progress float64        `json:"progress"`
	Ready    bool           `json:"ready"`
	Stale    bool           `json:"stale"`
	Order    *OrderResponse `json:"order,omitempty"`
}
