package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

type ProfileService struct {
	store core.IDocStore
	mylog logger.Logger
}

func NewProfileService(store core.IDocStore, mylog logger.Logger) *ProfileService {
	return &ProfileService{store: store, mylog: mylog}
}

// Get returns the stored profile of user, empty when none exists.
func (s *ProfileService) Get(ctx context.Context, user *identity.User) (models.Profile, error) {
	if user == nil {
		return models.Profile{}, core.ErrUnauthenticated
	}
	doc, err := s.store.Get(ctx, core.CollectionUsers, user.UID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.Profile{Email: user.Email}, nil
		}
		return models.Profile{}, fmt.Errorf("%w: get profile: %v", core.ErrGatewayUnavailable, err)
	}
	var p models.Profile
	if err := docstore.Decode(doc, &p); err != nil {
		return models.Profile{}, err
	}
	if p.Email == "" {
		p.Email = user.Email
	}
	return p, nil
}

// Complete merges the given fields into the profile of user.
func (s *ProfileService) Complete(ctx context.Context, user *identity.User, p models.Profile) error {
	if user == nil {
		return core.ErrUnauthenticated
	}
	err := s.store.Set(ctx, core.CollectionUsers, user.UID, docstore.Document{
		"firstName":   strings.TrimSpace(p.FirstName),
		"lastName":    strings.TrimSpace(p.LastName),
		"phoneNumber": strings.TrimSpace(p.PhoneNumber),
		"email":       user.Email,
	}, true)
	if err != nil {
		return fmt.Errorf("%w: save profile: %v", core.ErrGatewayUnavailable, err)
	}
	s.mylog.Action("profile_completed").Info("Profile saved", "uid", user.UID)
	return nil
}

// EnsureFromProvider seeds the profile of a user created by provider sign-in
// from the display name, first word as first name, second as last name.
func (s *ProfileService) EnsureFromProvider(ctx context.Context, user identity.User) error {
	_, err := s.store.Get(ctx, core.CollectionUsers, user.UID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: get profile: %v", core.ErrGatewayUnavailable, err)
	}

	var first, last string
	if parts := strings.Fields(user.DisplayName); len(parts) > 0 {
		first = parts[0]
		if len(parts) > 1 {
			last = parts[1]
		}
	}
	err = s.store.Set(ctx, core.CollectionUsers, user.UID, docstore.Document{
		"firstName":   first,
		"lastName":    last,
		"email":       user.Email,
		"phoneNumber": "",
	}, false)
	if err != nil {
		return fmt.Errorf("%w: seed profile: %v", core.ErrGatewayUnavailable, err)
	}
	return nil
}
