package identity

import (
	"context"
	"sync"
)

// MemoryCredentials keeps credentials in process memory. It backs the
// storefront when it runs without Postgres.
type MemoryCredentials struct {
	mu    sync.RWMutex
	byUID map[string]Credential
}

func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{byUID: make(map[string]Credential)}
}

func (m *MemoryCredentials) Create(ctx context.Context, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byUID {
		if existing.Email == c.Email {
			return ErrEmailTaken
		}
	}
	m.byUID[c.UID] = c
	return nil
}

func (m *MemoryCredentials) GetByEmail(ctx context.Context, email string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.byUID {
		if c.Email == email {
			return c, nil
		}
	}
	return Credential{}, ErrCredentialNotFound
}

func (m *MemoryCredentials) GetByUID(ctx context.Context, uid string) (Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byUID[uid]
	if !ok {
		return Credential{}, ErrCredentialNotFound
	}
	return c, nil
}

func (m *MemoryCredentials) UpdatePassword(ctx context.Context, uid, hash string) error {
	return m.modify(uid, func(c *Credential) { c.PasswordHash = hash })
}

func (m *MemoryCredentials) MarkEmailVerified(ctx context.Context, uid string) error {
	return m.modify(uid, func(c *Credential) { c.EmailVerified = true })
}

func (m *MemoryCredentials) modify(uid string, fn func(*Credential)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byUID[uid]
	if !ok {
		return ErrCredentialNotFound
	}
	fn(&c)
	m.byUID[uid] = c
	return nil
}
