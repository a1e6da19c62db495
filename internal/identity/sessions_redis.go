package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessions keeps bearer sessions and one-time tokens as expiring keys.
type RedisSessions struct {
	client *redis.Client
	prefix string
}

// DialRedis connects to redisURL and checks the connection.
func DialRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client, prefix: "restaurant:"}
}

func (r *RedisSessions) CreateSession(ctx context.Context, uid string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := r.client.Set(ctx, r.sessionKey(token), uid, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

func (r *RedisSessions) SessionUID(ctx context.Context, token string) (string, error) {
	uid, err := r.client.Get(ctx, r.sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get session: %w", err)
	}
	return uid, nil
}

func (r *RedisSessions) DeleteSession(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *RedisSessions) IssueToken(ctx context.Context, purpose TokenPurpose, uid string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := r.client.Set(ctx, r.tokenKey(purpose, token), uid, ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

func (r *RedisSessions) ConsumeToken(ctx context.Context, purpose TokenPurpose, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	uid, err := r.client.GetDel(ctx, r.tokenKey(purpose, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("consume token: %w", err)
	}
	return uid, nil
}

func (r *RedisSessions) sessionKey(token string) string {
	return r.prefix + "session:" + token
}

func (r *RedisSessions) tokenKey(purpose TokenPurpose, token string) string {
	return r.prefix + "token:" + string(purpose) + ":" + token
}
