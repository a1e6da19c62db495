package models

// CartLine is one distinct item in a cart. Name is unique within a cart.
type CartLine struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category,omitempty"`
	Image    string  `json:"image,omitempty"`
}
