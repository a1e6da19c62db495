package identity

import (
	"context"
	"testing"
	"time"

	"restaurant-app/internal/xpkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresCredentials(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	repo := NewPostgresCredentials(pool)
	c := Credential{
		UID:          "uid-1",
		Email:        "pg@example.com",
		PasswordHash: "hash",
		DisplayName:  "Pg",
		Provider:     ProviderPassword,
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, c))

	err := repo.Create(ctx, Credential{UID: "uid-2", Email: "pg@example.com", Provider: ProviderPassword, CreatedAt: c.CreatedAt})
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := repo.GetByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
	assert.False(t, got.EmailVerified)

	require.NoError(t, repo.MarkEmailVerified(ctx, "uid-1"))
	require.NoError(t, repo.UpdatePassword(ctx, "uid-1", "hash-2"))

	got, err = repo.GetByUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Equal(t, "hash-2", got.PasswordHash)

	_, err = repo.GetByUID(ctx, "missing")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
	assert.ErrorIs(t, repo.MarkEmailVerified(ctx, "missing"), ErrCredentialNotFound)
}
