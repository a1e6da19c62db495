package models

import "time"

// Broker topology shared by the storefront (publisher) and the notifier (consumer).
const (
	Exchange = "notifications"

	OrderReceiptsQueue = "order_receipts"
	AccountEmailsQueue = "account_emails"
)

// OrderCreated is published once per successfully placed order.
type OrderCreated struct {
	OrderID             string        `json:"order_id"`
	Email               string        `json:"email"`
	CustomerName        string        `json:"customer_name"`
	Items               []ReceiptItem `json:"items"`
	Total               float64       `json:"total"`
	SpecialInstructions string        `json:"special_instructions"`
	CreatedAt           time.Time     `json:"created_at"`
}

type ReceiptItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type EmailKind string

const (
	EmailVerification  EmailKind = "verification"
	EmailPasswordReset EmailKind = "password_reset"
)

// EmailJob asks the notifier to deliver an account email.
type EmailJob struct {
	Kind        EmailKind `json:"kind"`
	To          string    `json:"to"`
	DisplayName string    `json:"display_name"`
	Link        string    `json:"link"`
}
