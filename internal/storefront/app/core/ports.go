package core

import (
	"context"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/identity"
	"restaurant-app/internal/xpkg/models"
)

type IDocStore interface {
	docstore.Store
}

// IPublisher hands messages to the notifier.
type IPublisher interface {
	PublishOrderCreated(ctx context.Context, msg models.OrderCreated) error
	SendAccountEmail(ctx context.Context, job models.EmailJob) error
}

type IAuthState interface {
	OnAuthStateChanged(fn func(identity.AuthEvent)) (unsubscribe func())
}

type IIdentity interface {
	IAuthState
	CurrentUser(ctx context.Context, token string) (*identity.User, error)
	IsAdmin(u *identity.User) bool
	CreateUserWithPassword(ctx context.Context, email, password, displayName string) (identity.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (identity.Session, error)
	SignInWithProvider(ctx context.Context, provider, idToken string) (identity.Session, error)
	SignOut(ctx context.Context, token string) error
	SendPasswordResetEmail(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	SendEmailVerification(ctx context.Context, uid string) error
	SendEmailVerificationTo(ctx context.Context, email, password string) error
	VerifyEmail(ctx context.Context, token string) error
}
