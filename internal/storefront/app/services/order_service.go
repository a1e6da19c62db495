package services

import (
	"context"
	"errors"
	"fmt"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

type OrderService struct {
	store core.IDocStore
	mylog logger.Logger
}

func NewOrderService(store core.IDocStore, mylog logger.Logger) *OrderService {
	return &OrderService{store: store, mylog: mylog}
}

// DecodeOrder reads an order document. It reports core.ErrPartialData when
// createdAt is missing or items is not a list.
func DecodeOrder(id string, doc docstore.Document) (models.Order, error) {
	if _, ok := docstore.ParseTime(doc["createdAt"]); !ok {
		return models.Order{}, fmt.Errorf("%w: order %s has no createdAt", core.ErrPartialData, id)
	}
	if _, ok := doc["items"].([]any); !ok {
		return models.Order{}, fmt.Errorf("%w: order %s items is not a list", core.ErrPartialData, id)
	}

	var o models.Order
	if err := docstore.Decode(doc, &o); err != nil {
		return models.Order{}, fmt.Errorf("%w: %v", core.ErrPartialData, err)
	}
	o.ID = id
	if o.SpecialInstructions == "" {
		o.SpecialInstructions = core.DefaultSpecialInstructions
	}
	if o.Status == "" {
		o.Status = models.StatusPending
	}
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (models.Order, error) {
	doc, err := s.store.Get(ctx, core.CollectionOrders, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.Order{}, core.ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("%w: get order: %v", core.ErrGatewayUnavailable, err)
	}
	return DecodeOrder(id, doc)
}

// ListForEmail returns the orders placed with email, newest first.
func (s *OrderService) ListForEmail(ctx context.Context, email string) ([]models.Order, error) {
	return s.list(ctx, ordersQuery([]docstore.Filter{docstore.Eq("email", email)}))
}

// ListAll returns every order, newest first.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	return s.list(ctx, ordersQuery(nil))
}

// Watch streams the full order list, newest first, until ctx ends.
func (s *OrderService) Watch(ctx context.Context, fn func([]models.Order)) error {
	sub, err := s.store.Subscribe(ctx, ordersQuery(nil))
	if err != nil {
		return fmt.Errorf("%w: watch orders: %v", core.ErrGatewayUnavailable, err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.C:
			if !ok {
				return nil
			}
			if snap.Err != nil {
				s.mylog.Action("orders_snapshot_failed").Warn("Failed to refresh orders", "error", snap.Err.Error())
				continue
			}
			fn(s.decodeAll(snap.Docs))
		}
	}
}

// SetStatus is the staff override of an order status. It applies
// unconditionally and wins over the tracking timer.
func (s *OrderService) SetStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.StatusPending, models.StatusComplete, models.StatusCancelled:
	default:
		return fmt.Errorf("%w: %q", core.ErrInvalidStatus, status)
	}

	err := s.store.Update(ctx, core.CollectionOrders, id, docstore.Document{"status": status})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return core.ErrOrderNotFound
		}
		s.mylog.Action("order_status_failed").Error("Failed to update order status", err, "order_id", id)
		return fmt.Errorf("%w: update status: %v", core.ErrGatewayUnavailable, err)
	}
	s.mylog.Action("order_status_updated").Info("Order status updated", "order_id", id, "status", status)
	return nil
}

func ordersQuery(where []docstore.Filter) docstore.Query {
	return docstore.Query{
		Collection: core.CollectionOrders,
		Where:      where,
		OrderBy:    "createdAt",
		Desc:       true,
	}
}

func (s *OrderService) list(ctx context.Context, q docstore.Query) ([]models.Order, error) {
	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: query orders: %v", core.ErrGatewayUnavailable, err)
	}
	return s.decodeAll(docs), nil
}

// decodeAll skips incomplete records.
func (s *OrderService) decodeAll(docs []docstore.Doc) []models.Order {
	orders := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		o, err := DecodeOrder(d.ID, d.Data)
		if err != nil {
			s.mylog.Action("order_skipped").Warn("Skipping incomplete order", "order_id", d.ID, "error", err.Error())
			continue
		}
		orders = append(orders, o)
	}
	return orders
}
