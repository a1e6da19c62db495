package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"
)

// Progress is the share of duration elapsed since start, in percent, capped at 100.
func Progress(start, now time.Time, duration time.Duration) float64 {
	if duration <= 0 {
		return 100
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	return min(float64(elapsed)/float64(duration), 1) * 100
}

// TrackingUpdate is what a tracking view shows after a tick.
type TrackingUpdate struct {
	OrderID  string
	Progress float64
	// Stale is set when the last read failed and Progress is the previous value.
	Stale bool
	Order *models.Order
}

func (u TrackingUpdate) Ready() bool {
	return u.Progress >= 100
}

type TrackingMonitor struct {
	store    core.IDocStore
	clock    clock.Clock
	tick     time.Duration
	duration time.Duration
	mylog    logger.Logger
}

func NewTrackingMonitor(store core.IDocStore, clk clock.Clock, tick, duration time.Duration, mylog logger.Logger) *TrackingMonitor {
	return &TrackingMonitor{
		store:    store,
		clock:    clk,
		tick:     tick,
		duration: duration,
		mylog:    mylog,
	}
}

// TrackingSession is one view of one order. Its completion latch makes sure
// a session asks for the completion transition at most once.
type TrackingSession struct {
	m       *TrackingMonitor
	orderID string
	mylog   logger.Logger

	completed bool
	last      TrackingUpdate
}

// Start reads the order, records its start time if no viewer did before and
// returns the session with its first update.
func (m *TrackingMonitor) Start(ctx context.Context, orderID string) (*TrackingSession, TrackingUpdate, error) {
	s := &TrackingSession{
		m:       m,
		orderID: orderID,
		mylog:   m.mylog.With("order_id", orderID),
		last:    TrackingUpdate{OrderID: orderID},
	}

	if _, err := m.store.Get(ctx, core.CollectionOrders, orderID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, TrackingUpdate{}, core.ErrOrderNotFound
		}
		return nil, TrackingUpdate{}, fmt.Errorf("%w: read order: %v", core.ErrGatewayUnavailable, err)
	}

	applied, err := m.store.UpdateIf(ctx, core.CollectionOrders, orderID,
		[]docstore.Filter{docstore.Absent("startTime")},
		docstore.Document{"startTime": docstore.ServerTimestamp},
	)
	if err != nil {
		return nil, TrackingUpdate{}, fmt.Errorf("%w: set start time: %v", core.ErrGatewayUnavailable, err)
	}
	if applied {
		s.mylog.Action("tracking_started").Info("Order preparation started")
	}

	return s, s.Poll(ctx), nil
}

// Poll performs one tick: re-read the order, recompute progress and, the
// first time progress reaches 100, move a pending order to complete.
func (s *TrackingSession) Poll(ctx context.Context) TrackingUpdate {
	m := s.m
	doc, err := m.store.Get(ctx, core.CollectionOrders, s.orderID)
	if err != nil {
		s.mylog.Action("tracking_read_failed").Warn("Failed to read order, keeping last progress", "error", err.Error())
		s.last.Stale = true
		return s.last
	}

	start, ok := docstore.ParseTime(doc["startTime"])
	if !ok {
		s.mylog.Action("tracking_no_start").Warn("Order has no start time yet")
		s.last.Stale = true
		return s.last
	}

	update := TrackingUpdate{
		OrderID:  s.orderID,
		Progress: Progress(start, m.clock.Now(), m.duration),
	}
	if o, err := DecodeOrder(s.orderID, doc); err == nil {
		update.Order = &o
	} else {
		s.mylog.Action("tracking_partial_order").Debug("Order details incomplete", "error", err.Error())
	}

	if update.Ready() && !s.completed {
		applied, err := m.store.UpdateIf(ctx, core.CollectionOrders, s.orderID,
			[]docstore.Filter{docstore.Eq("status", models.StatusPending)},
			docstore.Document{"status": models.StatusComplete},
		)
		if err != nil {
			s.mylog.Action("tracking_complete_failed").Error("Failed to complete order", err)
		} else {
			s.completed = true
			if applied {
				s.mylog.Action("tracking_completed").Info("Order marked complete")
				if update.Order != nil {
					update.Order.Status = models.StatusComplete
				}
			}
		}
	}

	s.last = update
	return update
}

// Run drives a session every tick until ctx ends, passing each update to emit.
func (m *TrackingMonitor) Run(ctx context.Context, orderID string, emit func(TrackingUpdate)) error {
	s, first, err := m.Start(ctx, orderID)
	if err != nil {
		return err
	}
	emit(first)

	t := time.NewTicker(m.tick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mylog.Action("tracking_stopped").Debug("Tracking view closed")
			return nil
		case <-t.C:
			emit(s.Poll(ctx))
		}
	}
}
