// Package identity is the identity gateway: password and provider sign-in,
// bearer sessions, auth-state notifications and the account email flows.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrEmailNotVerified    = errors.New("Please verify your email before accessing the menu.")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrUnsupportedProvider = errors.New("unsupported sign-in provider")

	ErrCredentialNotFound = errors.New("credential not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionNotFound    = errors.New("session not found")
)

// Credential error codes reported by sign-up and sign-in.
const (
	CodeUserNotFound  = "user-not-found"
	CodeWrongPassword = "wrong-password"
	CodeInvalidEmail  = "invalid-email"
	CodeEmailInUse    = "email-in-use"
	CodeWeakPassword  = "weak-password"
)

var codeMessages = map[string]string{
	CodeUserNotFound:  "No user found with this email.",
	CodeWrongPassword: "Incorrect password.",
	CodeInvalidEmail:  "Invalid email format.",
	CodeEmailInUse:    "Email is already in use.",
	CodeWeakPassword:  "Password should be at least 6 characters.",
}

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 6

// CredentialError carries a provider error code. Its message is the
// user-facing text for the code.
type CredentialError struct {
	Code string
}

func (e *CredentialError) Error() string {
	if msg, ok := codeMessages[e.Code]; ok {
		return msg
	}
	return fmt.Sprintf("sign-in failed: %s", e.Code)
}

func (e *CredentialError) Is(target error) bool {
	return target == ErrInvalidCredential
}

// CodeOf returns the credential error code of err, or "".
func CodeOf(err error) string {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

type User struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
	Provider      string `json:"provider"`
}

// AuthEvent reports a sign-in (User set) or a sign-out (User nil).
type AuthEvent struct {
	UID  string
	User *User
}

func (e AuthEvent) SignedOut() bool {
	return e.User == nil
}

// Session is the result of a successful sign-in.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
	// NewUser is set when a provider sign-in created the account.
	NewUser bool `json:"new_user"`
}

type Credential struct {
	UID           string
	Email         string
	PasswordHash  string
	DisplayName   string
	EmailVerified bool
	Provider      string
	CreatedAt     time.Time
}

func (c Credential) User() User {
	return User{
		UID:           c.UID,
		Email:         c.Email,
		DisplayName:   c.DisplayName,
		EmailVerified: c.EmailVerified,
		Provider:      c.Provider,
	}
}

type CredentialRepo interface {
	Create(ctx context.Context, c Credential) error
	GetByEmail(ctx context.Context, email string) (Credential, error)
	GetByUID(ctx context.Context, uid string) (Credential, error)
	UpdatePassword(ctx context.Context, uid, hash string) error
	MarkEmailVerified(ctx context.Context, uid string) error
}

type TokenPurpose string

const (
	PurposePasswordReset TokenPurpose = "password_reset"
	PurposeVerifyEmail   TokenPurpose = "verify_email"
)

type SessionStore interface {
	CreateSession(ctx context.Context, uid string, ttl time.Duration) (string, error)
	SessionUID(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
	IssueToken(ctx context.Context, purpose TokenPurpose, uid string, ttl time.Duration) (string, error)
	// ConsumeToken returns the uid a one-time token was issued for and
	// invalidates it.
	ConsumeToken(ctx context.Context, purpose TokenPurpose, token string) (string, error)
}

// ProviderIdentity is what an external provider asserts about a user.
type ProviderIdentity struct {
	Email         string
	DisplayName   string
	EmailVerified bool
}

// ProviderVerifier checks a provider-issued id token.
type ProviderVerifier interface {
	Verify(ctx context.Context, idToken string) (ProviderIdentity, error)
}
