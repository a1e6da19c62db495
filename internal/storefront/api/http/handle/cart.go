package handle

import (
	"context"
	"errors"
	"net/http"

	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/xpkg/logger"
)

type CartHandler struct {
	carts *services.CartManager
	menu  *services.MenuService
	mylog logger.Logger
}

func NewCartHandler(carts *services.CartManager, menu *services.MenuService, mylog logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, menu: menu, mylog: mylog}
}

func cartResponse(cs *services.CartStore) dto.CartResponse {
	lines := cs.Lines()
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return dto.CartResponse{Items: lines, Total: services.CartTotal(lines), Count: count}
}

func (ch *CartHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := ch.carts.For(userFrom(r.Context()))
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, cartResponse(cs))
	}
}

func (ch *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AddItemRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if req.SectionID == "" || req.Name == "" {
			jsonError(w, http.StatusBadRequest, errors.New("section_id and name are required"))
			return
		}

		cs, err := ch.carts.For(userFrom(r.Context()))
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		line, err := ch.menu.FindItem(r.Context(), req.SectionID, req.Name)
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		if err := cs.AddItem(r.Context(), line); err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, cartResponse(cs))
	}
}

func (ch *CartHandler) Increase() http.HandlerFunc {
	return ch.byName((*services.CartStore).IncreaseQuantity)
}

func (ch *CartHandler) Decrease() http.HandlerFunc {
	return ch.byName((*services.CartStore).DecreaseQuantity)
}

func (ch *CartHandler) Remove() http.HandlerFunc {
	return ch.byName((*services.CartStore).RemoveItem)
}

func (ch *CartHandler) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := ch.carts.For(userFrom(r.Context()))
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		if err := cs.Clear(r.Context()); err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, cartResponse(cs))
	}
}

func (ch *CartHandler) byName(op func(*services.CartStore, context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cs, err := ch.carts.For(userFrom(r.Context()))
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		if err := op(cs, r.Context(), r.PathValue("name")); err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, cartResponse(cs))
	}
}
