package models

import "time"

const (
	StatusPending   = "pending"
	StatusComplete  = "complete"
	StatusCancelled = "cancelled"
)

type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
	Image    string  `json:"image,omitempty"`
}

type Order struct {
	ID                  string      `json:"-"`
	CustomerName        string      `json:"customerName"`
	Email               string      `json:"email"`
	Items               []OrderItem `json:"items"`
	Total               float64     `json:"total"`
	SpecialInstructions string      `json:"specialInstructions"`
	Status              string      `json:"status"`
	CreatedAt           time.Time   `json:"createdAt"`
	StartTime           *time.Time  `json:"startTime,omitempty"`
}
