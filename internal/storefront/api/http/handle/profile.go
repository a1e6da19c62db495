package handle

import (
	"net/http"

	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

type ProfileHandler struct {
	profiles *services.ProfileService
	mylog    logger.Logger
}

func NewProfileHandler(profiles *services.ProfileService, mylog logger.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, mylog: mylog}
}

func (ph *ProfileHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFrom(r.Context())
		p, err := ph.profiles.Get(r.Context(), user)
		if err != nil {
			serviceError(w, ph.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.ProfileResponse{
			UID:         user.UID,
			Email:       p.Email,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			PhoneNumber: p.PhoneNumber,
		})
	}
}

func (ph *ProfileHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.ProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		err := ph.profiles.Complete(r.Context(), userFrom(r.Context()), models.Profile{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
		})
		if err != nil {
			serviceError(w, ph.mylog, err)
			return
		}
		ph.Get()(w, r)
	}
}
