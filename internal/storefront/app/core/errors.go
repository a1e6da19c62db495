package core

import "errors"

var (
	ErrHelp = errors.New("")

	ErrUnauthenticated = errors.New("user is not signed in")
	// ErrNotAuthenticated is returned by checkout when no signed-in user with an email is present.
	ErrNotAuthenticated = ErrUnauthenticated
	ErrForbidden        = errors.New("not allowed for this account")

	ErrEmptyCart    = errors.New("cart is empty")
	ErrNotConfirmed = errors.New("order was not confirmed")

	ErrGatewayUnavailable = errors.New("storage is unavailable, try again later")
	ErrPartialData        = errors.New("order record is incomplete")

	ErrOrderNotFound   = errors.New("order not found")
	ErrSectionNotFound = errors.New("menu section not found")
	ErrItemNotFound    = errors.New("menu item not found")
	ErrInvalidMenuItem = errors.New("invalid menu item")
	ErrInvalidStatus   = errors.New("invalid order status")
)
