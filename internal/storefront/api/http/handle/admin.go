package handle

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

type AdminHandler struct {
	orders *services.OrderService
	menu   *services.MenuService
	mylog  logger.Logger
}

func NewAdminHandler(orders *services.OrderService, menu *services.MenuService, mylog logger.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, menu: menu, mylog: mylog}
}

func (ah *AdminHandler) Orders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := ah.orders.ListAll(r.Context())
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NewOrderResponses(orders))
	}
}

// OrdersStream sends the full order list every time it changes.
func (ah *AdminHandler) OrdersStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream, ok := newEventStream(w)
		if !ok {
			jsonError(w, http.StatusInternalServerError, errStreaming)
			return
		}
		mylog := ah.mylog.Action("orders_stream")

		err := ah.orders.Watch(r.Context(), func(orders []models.Order) {
			if err := stream.send("orders", dto.NewOrderResponses(orders)); err != nil {
				mylog.Debug("Failed to write orders event", "error", err.Error())
			}
		})
		if err != nil {
			mylog.Error("Orders stream stopped", err)
			_ = stream.send("error", map[string]string{"error": err.Error()})
		}
	}
}

func (ah *AdminHandler) SetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.StatusRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		id := r.PathValue("id")
		if err := ah.orders.SetStatus(r.Context(), id, req.Status); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		o, err := ah.orders.Get(r.Context(), id)
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NewOrderResponse(o))
	}
}

func (ah *AdminHandler) AddSection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SectionRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		id, err := ah.menu.AddSection(r.Context(), req.Category)
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.CreatedResponse{ID: id})
	}
}

func (ah *AdminHandler) RemoveSection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ah.menu.RemoveSection(r.Context(), r.PathValue("id")); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (ah *AdminHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.MenuItemRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		err := ah.menu.AddItem(r.Context(), r.PathValue("id"), models.MenuItem{
			Name:  req.Name,
			Price: req.Price,
			Image: req.Image,
		})
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		sec, err := ah.menu.Section(r.Context(), r.PathValue("id"))
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.NewMenuResponse([]models.MenuSection{sec})[0])
	}
}

func (ah *AdminHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			jsonError(w, http.StatusBadRequest, errors.New("item index must be a number"))
			return
		}
		if err := ah.menu.RemoveItem(r.Context(), r.PathValue("id"), index); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
