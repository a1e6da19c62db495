package handle

import (
	"net/http"

	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/xpkg/logger"
)

type MenuHandler struct {
	menu  *services.MenuService
	mylog logger.Logger
}

func NewMenuHandler(menu *services.MenuService, mylog logger.Logger) *MenuHandler {
	return &MenuHandler{menu: menu, mylog: mylog}
}

func (mh *MenuHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sections, err := mh.menu.List(r.Context())
		if err != nil {
			serviceError(w, mh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.NewMenuResponse(sections))
	}
}
