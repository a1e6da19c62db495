package handle

import (
	"net/http"

	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/app/services"
	"restaurant-app/internal/storefront/domain/dto"
	"restaurant-app/internal/xpkg/logger"
)

type AuthHandler struct {
	id       core.IIdentity
	profiles *services.ProfileService
	mylog    logger.Logger
}

func NewAuthHandler(id core.IIdentity, profiles *services.ProfileService, mylog logger.Logger) *AuthHandler {
	return &AuthHandler{id: id, profiles: profiles, mylog: mylog}
}

func (ah *AuthHandler) SignUp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SignUpRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if req.Password != req.ConfirmPassword {
			jsonError(w, http.StatusBadRequest, errPasswordMatch)
			return
		}

		user, err := ah.id.CreateUserWithPassword(r.Context(), req.Email, req.Password, req.DisplayName)
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		ah.mylog.Action("signed_up").Info("Account created", "uid", user.UID)
		jsonResponse(w, http.StatusCreated, dto.MessageResponse{
			Message: "Account created. Check your inbox to verify your email.",
		})
	}
}

func (ah *AuthHandler) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		sess, err := ah.id.SignInWithPassword(r.Context(), req.Email, req.Password)
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, ah.sessionResponse(sess))
	}
}

// LoginWithProvider signs in with an identity token from an external
// provider. The first sign-in creates the account and seeds its profile.
func (ah *AuthHandler) LoginWithProvider() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.ProviderLoginRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		sess, err := ah.id.SignInWithProvider(r.Context(), r.PathValue("provider"), req.IDToken)
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		if sess.NewUser {
			if err := ah.profiles.EnsureFromProvider(r.Context(), sess.User); err != nil {
				ah.mylog.Action("profile_seed_failed").Error("Failed to seed profile", err, "uid", sess.User.UID)
			}
		}
		jsonResponse(w, http.StatusOK, ah.sessionResponse(sess))
	}
}

func (ah *AuthHandler) sessionResponse(sess identity.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Token:                     sess.Token,
		User:                      sess.User,
		IsAdmin:                   ah.id.IsAdmin(&sess.User),
		ProfileCompletionRequired: sess.NewUser,
	}
}

func (ah *AuthHandler) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ah.id.SignOut(r.Context(), tokenFrom(r.Context())); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.MessageResponse{Message: "Signed out."})
	}
}

func (ah *AuthHandler) PasswordReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.PasswordResetRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if err := ah.id.SendPasswordResetEmail(r.Context(), req.Email); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusAccepted, dto.MessageResponse{Message: "Password reset email sent."})
	}
}

func (ah *AuthHandler) PasswordResetConfirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.PasswordResetConfirmRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if err := ah.id.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.MessageResponse{Message: "Password updated."})
	}
}

// Verification resends the verification email, to the signed-in user or to
// the account identified by email and password.
func (ah *AuthHandler) Verification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if user := userFrom(r.Context()); user != nil {
			err = ah.id.SendEmailVerification(r.Context(), user.UID)
		} else {
			var req dto.VerificationRequest
			if err := decodeJSON(r, &req); err != nil {
				jsonError(w, http.StatusBadRequest, err)
				return
			}
			err = ah.id.SendEmailVerificationTo(r.Context(), req.Email, req.Password)
		}
		if err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusAccepted, dto.MessageResponse{Message: "Verification email sent."})
	}
}

func (ah *AuthHandler) Verify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.VerifyRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if err := ah.id.VerifyEmail(r.Context(), req.Token); err != nil {
			serviceError(w, ah.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.MessageResponse{Message: "Email verified."})
	}
}
