package handle

import (
	"errors"
	"net/http"

	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

var errStreaming = errors.New("streaming is not supported")

type OrderHandler struct {
	id      core.IIdentity
	orders  *services.OrderService
	monitor *services.TrackingMonitor
	mylog   logger.Logger
}

func NewOrderHandler(id core.IIdentity, orders *services.OrderService, monitor *services.TrackingMonitor, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{id: id, orders: orders, monitor: monitor, mylog: mylog}
}

// History lists the orders placed with the caller's email.
func (oh *OrderHandler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := oh.orders.ListForEmail(r.Context(), userFrom(r.Context()).Email)
		if err != nil {
			serviceError(w, oh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NewOrderResponses(orders))
	}
}

func (oh *OrderHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := oh.owned(r)
		if err != nil {
			serviceError(w, oh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NewOrderResponse(o))
	}
}

// Track streams preparation progress of an order until the client leaves.
func (oh *OrderHandler) Track() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := oh.owned(r)
		if err != nil {
			serviceError(w, oh.mylog, err)
			return
		}
		stream, ok := newEventStream(w)
		if !ok {
			jsonError(w, http.StatusInternalServerError, errStreaming)
			return
		}

		mylog := oh.mylog.Action("order_tracking").With("order_id", o.ID)
		mylog.Debug("Tracking view opened")

		err = oh.monitor.Run(r.Context(), o.ID, func(u services.TrackingUpdate) {
			if err := stream.send("progress", trackingEvent(u)); err != nil {
				mylog.Debug("Failed to write tracking event", "error", err.Error())
			}
		})
		if err != nil {
			mylog.Error("Tracking stopped", err)
			_ = stream.send("error", map[string]string{"error": err.Error()})
		}
	}
}

func trackingEvent(u services.TrackingUpdate) dto.TrackingEvent {
	ev := dto.TrackingEvent{
		OrderID:  u.OrderID,
		Progress: u.Progress,
		Ready:    u.Ready(),
		Stale:    u.Stale,
	}
	if u.Order != nil {
		resp := dto.NewOrderResponse(*u.Order)
		ev.Order = &resp
	}
	return ev
}

// owned returns the order of the path if the caller placed it or is staff.
func (oh *OrderHandler) owned(r *http.Request) (models.Order, error) {
	user := userFrom(r.Context())
	o, err := oh.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return models.Order{}, err
	}
	if o.Email != user.Email && !oh.id.IsAdmin(user) {
		return models.Order{}, core.ErrOrderNotFound
	}
	return o, nil
}
