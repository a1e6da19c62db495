package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"
	xmodels "restaurant-app/internal/xpkg/models"
)

// Cart is the view of a cart checkout needs.
type Cart interface {
	Lines() []models.CartLine
	Clear(ctx context.Context) error
}

type CheckoutInput struct {
	SpecialInstructions string
	// Confirmed is the customer's explicit confirmation; without it the
	// checkout is abandoned.
	Confirmed bool
}

type CheckoutService struct {
	store     core.IDocStore
	publisher core.IPublisher
	clock     clock.Clock
	mylog     logger.Logger
}

func NewCheckoutService(store core.IDocStore, publisher core.IPublisher, clk clock.Clock, mylog logger.Logger) *CheckoutService {
	return &CheckoutService{
		store:     store,
		publisher: publisher,
		clock:     clk,
		mylog:     mylog,
	}
}

// CartTotal sums price times quantity, rounded to cents.
func CartTotal(lines []models.CartLine) float64 {
	total := 0.0
	for _, l := range lines {
		total += l.Price * float64(l.Quantity)
	}
	return math.Round(total*100) / 100
}

// PlaceOrder turns a snapshot of cart into a pending order and returns its id.
// The cart is only cleared once the order is stored.
func (s *CheckoutService) PlaceOrder(ctx context.Context, user *identity.User, cart Cart, in CheckoutInput) (string, error) {
	mylog := s.mylog.Action("place_order")

	if user == nil || user.Email == "" {
		return "", core.ErrNotAuthenticated
	}

	var lines []models.CartLine
	if cart != nil {
		lines = cart.Lines()
	}
	if len(lines) == 0 {
		return "", core.ErrEmptyCart
	}
	if !in.Confirmed {
		return "", core.ErrNotConfirmed
	}

	total := CartTotal(lines)
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			Name:     l.Name,
			Price:    l.Price,
			Quantity: l.Quantity,
			Category: l.Category,
			Image:    l.Image,
		})
	}

	instructions := strings.TrimSpace(in.SpecialInstructions)
	if instructions == "" {
		instructions = core.DefaultSpecialInstructions
	}
	customerName := strings.TrimSpace(user.DisplayName)
	if customerName == "" {
		customerName = core.DefaultCustomerName
	}

	id, err := s.store.Create(ctx, core.CollectionOrders, docstore.Document{
		"customerName":        customerName,
		"email":               user.Email,
		"items":               items,
		"total":               total,
		"specialInstructions": instructions,
		"status":              models.StatusPending,
		"createdAt":           docstore.ServerTimestamp,
	})
	if err != nil {
		mylog.Error("Failed to save order", err, "email", user.Email)
		return "", fmt.Errorf("%w: create order: %v", core.ErrGatewayUnavailable, err)
	}
	mylog = mylog.With("order_id", id)
	mylog.Info("Order placed", "total", total, "number_of_items", len(items))

	if err := cart.Clear(ctx); err != nil {
		mylog.Error("Failed to clear cart after order", err)
	}

	msg := xmodels.OrderCreated{
		OrderID:             id,
		Email:               user.Email,
		CustomerName:        customerName,
		Total:               total,
		SpecialInstructions: instructions,
		CreatedAt:           s.storedCreatedAt(ctx, id),
	}
	for _, it := range items {
		msg.Items = append(msg.Items, xmodels.ReceiptItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}
	if err := s.publisher.PublishOrderCreated(ctx, msg); err != nil {
		mylog.Error("Failed to publish order receipt", err)
	}

	return id, nil
}

// storedCreatedAt reads back the timestamp the store assigned to the order.
// The local clock stands in when the read fails.
func (s *CheckoutService) storedCreatedAt(ctx context.Context, id string) time.Time {
	doc, err := s.store.Get(ctx, core.CollectionOrders, id)
	if err != nil {
		s.mylog.Action("order_read_failed").Warn("Failed to read back order, using local time", "order_id", id, "error", err.Error())
		return s.clock.Now()
	}
	if t, ok := docstore.ParseTime(doc["createdAt"]); ok {
		return t
	}
	return s.clock.Now()
}
