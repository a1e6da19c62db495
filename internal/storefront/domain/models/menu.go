package models

type MenuItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type MenuSection struct {
	ID       string     `json:"-"`
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
}
