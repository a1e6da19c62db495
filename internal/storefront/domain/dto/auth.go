package dto

import "restaurant-app/internal/identity"

type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DisplayName     string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProviderLoginRequest struct {
	IDToken string `json:"id_token"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// VerificationRequest resends the verification email. Email and password are
// needed when the caller has no session because the account is unverified.
type VerificationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	Token   string        `json:"token"`
	User    identity.User `json:"user"`
	IsAdmin bool          `json:"is_admin"`
	// ProfileCompletionRequired is set on the first provider sign-in.
	ProfileCompletionRequired bool `json:"profile_completion_required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
