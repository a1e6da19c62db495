package handle

import (
	"context"
	"net/http"
	"strings"

	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/xpkg/logger"
)

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// Auth resolves bearer tokens into users.
type Auth struct {
	id    core.IIdentity
	mylog logger.Logger
}

func NewAuth(id core.IIdentity, mylog logger.Logger) *Auth {
	return &Auth{id: id, mylog: mylog}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Optional attaches the signed-in user, if any, to the request context.
func (a *Auth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := a.id.CurrentUser(r.Context(), token)
		if err != nil {
			a.mylog.Action("session_lookup_failed").Error("Failed to resolve session", err)
			jsonError(w, http.StatusServiceUnavailable, core.ErrGatewayUnavailable)
			return
		}
		ctx := r.Context()
		if user != nil {
			ctx = context.WithValue(ctx, userKey, user)
			ctx = context.WithValue(ctx, tokenKey, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// User rejects requests without a signed-in user.
func (a *Auth) User(next http.Handler) http.Handler {
	return a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r.Context()) == nil {
			jsonError(w, http.StatusUnauthorized, core.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// Admin only lets the staff account through.
func (a *Auth) Admin(next http.Handler) http.Handler {
	return a.User(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.id.IsAdmin(userFrom(r.Context())) {
			jsonError(w, http.StatusForbidden, core.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func userFrom(ctx context.Context) *identity.User {
	u, _ := ctx.Value(userKey).(*identity.User)
	return u
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
