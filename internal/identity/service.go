package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const ProviderPassword = "password"

// Mailer queues account emails for delivery.
type Mailer interface {
	SendAccountEmail(ctx context.Context, job models.EmailJob) error
}

type Options struct {
	AdminEmail string
	PublicURL  string
	SessionTTL time.Duration
	TokenTTL   time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost  int
	Verifiers map[string]ProviderVerifier
	Clock     clock.Clock
}

type Service struct {
	repo     CredentialRepo
	sessions SessionStore
	mailer   Mailer
	opts     Options
	mylog    logger.Logger

	mu        sync.Mutex
	listeners map[int]func(AuthEvent)
	nextID    int
}

func NewService(repo CredentialRepo, sessions SessionStore, mailer Mailer, opts Options, mylog logger.Logger) *Service {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystem()
	}
	opts.AdminEmail = normalizeEmail(opts.AdminEmail)
	return &Service{
		repo:      repo,
		sessions:  sessions,
		mailer:    mailer,
		opts:      opts,
		mylog:     mylog,
		listeners: make(map[int]func(AuthEvent)),
	}
}

// IsAdmin reports whether u is the staff account.
func (s *Service) IsAdmin(u *User) bool {
	return u != nil && s.opts.AdminEmail != "" && normalizeEmail(u.Email) == s.opts.AdminEmail
}

// OnAuthStateChanged registers fn for every sign-in and sign-out and returns
// the function that unregisters it.
func (s *Service) OnAuthStateChanged(fn func(AuthEvent)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) emit(ev AuthEvent) {
	s.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// CurrentUser resolves a bearer token. An unknown or expired token yields a
// nil user and no error.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	uid, err := s.sessions.SessionUID(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	c, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	u := c.User()
	return &u, nil
}

// CreateUserWithPassword registers a password account and sends the
// verification email. The new account must verify before signing in.
func (s *Service) CreateUserWithPassword(ctx context.Context, email, password, displayName string) (User, error) {
	mylog := s.mylog.Action("create_user")

	email, err := validateEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < MinPasswordLen {
		return User{}, &CredentialError{Code: CodeWeakPassword}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.HashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	c := Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(displayName),
		Provider:     ProviderPassword,
		CreatedAt:    s.opts.Clock.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, &CredentialError{Code: CodeEmailInUse}
		}
		mylog.Error("Failed to save credential", err)
		return User{}, fmt.Errorf("create credential: %w", err)
	}
	mylog.Info("User created", "uid", c.UID)

	if err := s.sendVerification(ctx, c); err != nil {
		mylog.Error("Failed to send verification email", err, "uid", c.UID)
	}
	return c.User(), nil
}

// SignInWithPassword checks the password and opens a session. Accounts other
// than the staff account must have a verified email.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	email, err := validateEmail(email)
	if err != nil {
		return Session{}, err
	}

	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return Session{}, &CredentialError{Code: CodeUserNotFound}
		}
		return Session{}, fmt.Errorf("lookup credential: %w", err)
	}
	if c.PasswordHash == "" {
		return Session{}, &CredentialError{Code: CodeWrongPassword}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return Session{}, &CredentialError{Code: CodeWrongPassword}
	}

	u := c.User()
	if !u.EmailVerified && !s.IsAdmin(&u) {
		return Session{}, ErrEmailNotVerified
	}
	return s.openSession(ctx, u, false)
}

// SignInWithProvider verifies a provider id token, creating the account on
// first use.
func (s *Service) SignInWithProvider(ctx context.Context, provider, idToken string) (Session, error) {
	v, ok := s.opts.Verifiers[provider]
	if !ok {
		return Session{}, ErrUnsupportedProvider
	}

	pid, err := v.Verify(ctx, idToken)
	if err != nil {
		s.mylog.Action("provider_sign_in_failed").Warn("Provider rejected id token", "provider", provider, "error", err.Error())
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	email, err := validateEmail(pid.Email)
	if err != nil {
		return Session{}, err
	}

	c, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.openSession(ctx, c.User(), false)
	case !errors.Is(err, ErrCredentialNotFound):
		return Session{}, fmt.Errorf("lookup credential: %w", err)
	}

	c = Credential{
		UID:           uuid.NewString(),
		Email:         email,
		DisplayName:   pid.DisplayName,
		EmailVerified: pid.EmailVerified,
		Provider:      provider,
		CreatedAt:     s.opts.Clock.Now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Session{}, fmt.Errorf("create credential: %w", err)
	}
	s.mylog.Action("provider_user_created").Info("User created from provider", "uid", c.UID, "provider", provider)
	return s.openSession(ctx, c.User(), true)
}

func (s *Service) openSession(ctx context.Context, u User, newUser bool) (Session, error) {
	token, err := s.sessions.CreateSession(ctx, u.UID, s.opts.SessionTTL)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	s.emit(AuthEvent{UID: u.UID, User: &u})
	return Session{Token: token, User: u, NewUser: newUser}, nil
}

// SignOut ends the session behind token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	uid, err := s.sessions.SessionUID(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.emit(AuthEvent{UID: uid})
	return nil
}

// SendPasswordResetEmail mails a one-time reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, email string) error {
	email, err := validateEmail(email)
	if err != nil {
		return err
	}
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return &CredentialError{Code: CodeUserNotFound}
		}
		return fmt.Errorf("lookup credential: %w", err)
	}

	token, err := s.sessions.IssueToken(ctx, PurposePasswordReset, c.UID, s.opts.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	return s.mailer.SendAccountEmail(ctx, models.EmailJob{
		Kind:        models.EmailPasswordReset,
		To:          c.Email,
		DisplayName: c.DisplayName,
		Link:        s.link("/reset-password", token),
	})
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLen {
		return &CredentialError{Code: CodeWeakPassword}
	}
	uid, err := s.sessions.ConsumeToken(ctx, PurposePasswordReset, token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.HashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, uid, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.mylog.Action("password_reset").Info("Password changed", "uid", uid)
	return nil
}

// SendEmailVerification resends the verification link to the account uid.
func (s *Service) SendEmailVerification(ctx context.Context, uid string) error {
	c, err := s.repo.GetByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("lookup credential: %w", err)
	}
	if c.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, c)
}

// SendEmailVerificationTo resends the verification link to an unverified
// password account identified by email and password, for users who cannot
// sign in yet.
func (s *Service) SendEmailVerificationTo(ctx context.Context, email, password string) error {
	email, err := validateEmail(email)
	if err != nil {
		return err
	}
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return &CredentialError{Code: CodeUserNotFound}
		}
		return fmt.Errorf("lookup credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return &CredentialError{Code: CodeWrongPassword}
	}
	if c.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, c)
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	uid, err := s.sessions.ConsumeToken(ctx, PurposeVerifyEmail, token)
	if err != nil {
		return err
	}
	if err := s.repo.MarkEmailVerified(ctx, uid); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	s.mylog.Action("email_verified").Info("Email verified", "uid", uid)
	return nil
}

func (s *Service) sendVerification(ctx context.Context, c Credential) error {
	token, err := s.sessions.IssueToken(ctx, PurposeVerifyEmail, c.UID, s.opts.TokenTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	return s.mailer.SendAccountEmail(ctx, models.EmailJob{
		Kind:        models.EmailVerification,
		To:          c.Email,
		DisplayName: c.DisplayName,
		Link:        s.link("/verify-email", token),
	})
}

func (s *Service) link(path, token string) string {
	return strings.TrimRight(s.opts.PublicURL, "/") + path + "?token=" + token
}

func validateEmail(email string) (string, error) {
	email = normalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", &CredentialError{Code: CodeInvalidEmail}
	}
	return email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
