package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"restaurant-app/internal/xpkg/logger"
	"restaurant-app/internal/xpkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	mu   sync.Mutex
	jobs []models.EmailJob
}

func (m *fakeMailer) SendAccountEmail(ctx context.Context, job models.EmailJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *fakeMailer) last(t *testing.T) models.EmailJob {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.jobs)
	return m.jobs[len(m.jobs)-1]
}

type fakeVerifier struct {
	identity ProviderIdentity
	err      error
}

func (v fakeVerifier) Verify(ctx context.Context, idToken string) (ProviderIdentity, error) {
	return v.identity, v.err
}

func newTestService(t *testing.T) (*Service, *MemoryCredentials, *fakeMailer) {
	t.Helper()
	_, client := setupTestRedis(t)
	repo := NewMemoryCredentials()
	mailer := &fakeMailer{}
	svc := NewService(repo, NewRedisSessions(client), mailer, Options{
		AdminEmail: "Admin@Restaurant.io",
		PublicURL:  "http://shop.test/",
		HashCost:   bcrypt.MinCost,
		Verifiers: map[string]ProviderVerifier{
			"google": fakeVerifier{identity: ProviderIdentity{Email: "g@gmail.com", DisplayName: "Gee Mail", EmailVerified: true}},
			"broken": fakeVerifier{err: errors.New("bad signature")},
		},
	}, logger.Discard())
	return svc, repo, mailer
}

func tokenFromLink(link string) string {
	return link[strings.Index(link, "token=")+len("token="):]
}

func TestService_SignUpVerifyAndSignIn(t *testing.T) {
	svc, _, mailer := newTestService(t)
	ctx := context.Background()

	u, err := svc.CreateUserWithPassword(ctx, " Ann@Example.com ", "secret1", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.False(t, u.EmailVerified)

	job := mailer.last(t)
	assert.Equal(t, models.EmailVerification, job.Kind)
	assert.Equal(t, "ann@example.com", job.To)
	assert.True(t, strings.HasPrefix(job.Link, "http://shop.test/verify-email?token="))

	_, err = svc.SignInWithPassword(ctx, "ann@example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Equal(t, "Please verify your email before accessing the menu.", err.Error())

	require.NoError(t, svc.VerifyEmail(ctx, tokenFromLink(job.Link)))

	sess, err := svc.SignInWithPassword(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	cur, err := svc.CurrentUser(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, u.UID, cur.UID)
	assert.True(t, cur.EmailVerified)
}

func TestService_CredentialErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUserWithPassword(ctx, "bob@example.com", "secret1", "Bob")
	require.NoError(t, err)

	tests := []struct {
		name    string
		run     func() error
		code    string
		message string
	}{
		{
			name:    "unknown user",
			run:     func() error { _, err := svc.SignInWithPassword(ctx, "nobody@example.com", "secret1"); return err },
			code:    CodeUserNotFound,
			message: "No user found with this email.",
		},
		{
			name:    "wrong password",
			run:     func() error { _, err := svc.SignInWithPassword(ctx, "bob@example.com", "nope123"); return err },
			code:    CodeWrongPassword,
			message: "Incorrect password.",
		},
		{
			name:    "invalid email",
			run:     func() error { _, err := svc.SignInWithPassword(ctx, "not-an-email", "secret1"); return err },
			code:    CodeInvalidEmail,
			message: "Invalid email format.",
		},
		{
			name:    "email in use",
			run:     func() error { _, err := svc.CreateUserWithPassword(ctx, "BOB@example.com", "secret2", ""); return err },
			code:    CodeEmailInUse,
			message: "Email is already in use.",
		},
		{
			name:    "weak password",
			run:     func() error { _, err := svc.CreateUserWithPassword(ctx, "carl@example.com", "12345", ""); return err },
			code:    CodeWeakPassword,
			message: "Password should be at least 6 characters.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidCredential)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestService_AdminSkipsVerification(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUserWithPassword(ctx, "admin@restaurant.io", "secret1", "Staff")
	require.NoError(t, err)

	sess, err := svc.SignInWithPassword(ctx, "admin@restaurant.io", "secret1")
	require.NoError(t, err)
	assert.True(t, svc.IsAdmin(&sess.User))
}

func TestService_AuthStateEvents(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Credential{UID: "u1", Email: "dee@example.com", EmailVerified: true, PasswordHash: mustHash(t, "secret1")}))

	var events []AuthEvent
	unsubscribe := svc.OnAuthStateChanged(func(ev AuthEvent) { events = append(events, ev) })

	sess, err := svc.SignInWithPassword(ctx, "dee@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, sess.Token))

	require.Len(t, events, 2)
	assert.False(t, events[0].SignedOut())
	assert.Equal(t, "u1", events[0].UID)
	assert.True(t, events[1].SignedOut())
	assert.Equal(t, "u1", events[1].UID)

	cur, err := svc.CurrentUser(ctx, sess.Token)
	require.NoError(t, err)
	assert.Nil(t, cur)

	unsubscribe()
	unsubscribe()
	_, err = svc.SignInWithPassword(ctx, "dee@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, mailer := newTestService(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Credential{UID: "u2", Email: "eve@example.com", EmailVerified: true, PasswordHash: mustHash(t, "old-pass")}))

	err := svc.SendPasswordResetEmail(ctx, "ghost@example.com")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))

	require.NoError(t, svc.SendPasswordResetEmail(ctx, "eve@example.com"))
	job := mailer.last(t)
	assert.Equal(t, models.EmailPasswordReset, job.Kind)
	token := tokenFromLink(job.Link)

	assert.Equal(t, CodeWeakPassword, CodeOf(svc.ConfirmPasswordReset(ctx, token, "abc")))
	require.NoError(t, svc.ConfirmPasswordReset(ctx, token, "new-pass"))
	assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, token, "new-pass"), ErrInvalidToken)

	_, err = svc.SignInWithPassword(ctx, "eve@example.com", "new-pass")
	assert.NoError(t, err)
}

func TestService_SignInWithProvider(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.SignInWithProvider(ctx, "google", "id-token")
	require.NoError(t, err)
	assert.True(t, sess.NewUser)
	assert.Equal(t, "g@gmail.com", sess.User.Email)
	assert.Equal(t, "google", sess.User.Provider)

	again, err := svc.SignInWithProvider(ctx, "google", "id-token")
	require.NoError(t, err)
	assert.False(t, again.NewUser)
	assert.Equal(t, sess.User.UID, again.User.UID)

	_, err = svc.SignInWithProvider(ctx, "github", "x")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = svc.SignInWithProvider(ctx, "broken", "x")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestService_CurrentUserWithoutToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	u, err := svc.CurrentUser(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = svc.CurrentUser(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}
