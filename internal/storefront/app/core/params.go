package core

type StorefrontParams struct {
	Port int
	// Store selects the persistence gateway: postgres or memory.
	Store string
}

const (
	// in seconds for request handling and shutdown
	WaitTime = 20

	CollectionMenu   = "menu"
	CollectionOrders = "orders"
	CollectionCarts  = "carts"
	CollectionUsers  = "users"

	DefaultSpecialInstructions = "None"
	DefaultCustomerName        = "Customer"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)
