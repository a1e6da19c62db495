package handle

import (
	"context"
	"net/http"
	"time"

	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/xpkg/logger"
)

type CheckoutHandler struct {
	carts    *services.CartManager
	checkout *services.CheckoutService
	mylog    logger.Logger
}

func NewCheckoutHandler(carts *services.CartManager, checkout *services.CheckoutService, mylog logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{carts: carts, checkout: checkout, mylog: mylog}
}

func (ch *CheckoutHandler) PlaceOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		user := userFrom(r.Context())
		cs, err := ch.carts.For(user)
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}

		// the order must survive a client that disconnects mid-request
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), core.WaitTime*time.Second)
		defer cancel()

		id, err := ch.checkout.PlaceOrder(ctx, user, cs, services.CheckoutInput{
			SpecialInstructions: req.SpecialInstructions,
			Confirmed:           req.Confirmed,
		})
		if err != nil {
			serviceError(w, ch.mylog, err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.CheckoutResponse{OrderID: id})
	}
}
