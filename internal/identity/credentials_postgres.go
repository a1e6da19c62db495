package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresCredentials struct {
	pool *pgxpool.Pool
}

func NewPostgresCredentials(pool *pgxpool.Pool) *PostgresCredentials {
	return &PostgresCredentials{pool: pool}
}

func (r *PostgresCredentials) Create(ctx context.Context, c Credential) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credentials (uid, email, password_hash, display_name, email_verified, provider, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.UID, c.Email, c.PasswordHash, c.DisplayName, c.EmailVerified, c.Provider, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (r *PostgresCredentials) GetByEmail(ctx context.Context, email string) (Credential, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *PostgresCredentials) GetByUID(ctx context.Context, uid string) (Credential, error) {
	return r.get(ctx, `WHERE uid = $1`, uid)
}

func (r *PostgresCredentials) get(ctx context.Context, where string, arg string) (Credential, error) {
	var c Credential
	err := r.pool.QueryRow(ctx, `
		SELECT uid, email, password_hash, display_name, email_verified, provider, created_at
		FROM credentials `+where, arg,
	).Scan(&c.UID, &c.Email, &c.PasswordHash, &c.DisplayName, &c.EmailVerified, &c.Provider, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrCredentialNotFound
		}
		return Credential{}, fmt.Errorf("select credential: %w", err)
	}
	return c, nil
}

func (r *PostgresCredentials) UpdatePassword(ctx context.Context, uid, hash string) error {
	return r.exec(ctx, `UPDATE credentials SET password_hash = $2 WHERE uid = $1`, uid, hash)
}

func (r *PostgresCredentials) MarkEmailVerified(ctx context.Context, uid string) error {
	return r.exec(ctx, `UPDATE credentials SET email_verified = TRUE WHERE uid = $1`, uid)
}

func (r *PostgresCredentials) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCredentialNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
