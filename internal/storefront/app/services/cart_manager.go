package services

import (
	"context"
	"sync"
	"time"

	"restaurant-app/internal/identity"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/logger"
)

// CartManager owns one CartStore per signed-in user. A store is opened on
// first use and released when its user signs out or stops using it.
type CartManager struct {
	ctx   context.Context
	store core.IDocStore
	clock clock.Clock
	mylog logger.Logger

	mu    sync.Mutex
	carts map[string]*cartEntry

	unsubscribe func()
}

// cartEntry is ready once its store finished opening. cs and err are set
// under CartManager.mu before ready is closed.
type cartEntry struct {
	ready    chan struct{}
	cs       *CartStore
	err      error
	lastUsed time.Time
}

func NewCartManager(ctx context.Context, store core.IDocStore, auth core.IAuthState, clk clock.Clock, mylog logger.Logger) *CartManager {
	m := &CartManager{
		ctx:   ctx,
		store: store,
		clock: clk,
		mylog: mylog,
		carts: make(map[string]*cartEntry),
	}
	m.unsubscribe = auth.OnAuthStateChanged(func(ev identity.AuthEvent) {
		if ev.SignedOut() {
			m.Release(ev.UID)
		}
	})
	return m
}

// For returns the cart of user, opening it on first access. Opening runs
// outside the manager lock, so a slow gateway only delays that user.
func (m *CartManager) For(user *identity.User) (*CartStore, error) {
	if user == nil || user.UID == "" {
		return nil, core.ErrUnauthenticated
	}
	uid := user.UID

	m.mu.Lock()
	e, ok := m.carts[uid]
	if !ok {
		e = &cartEntry{ready: make(chan struct{})}
		m.carts[uid] = e
	}
	e.lastUsed = m.clock.Now()
	m.mu.Unlock()

	if !ok {
		m.open(uid, e)
	}
	<-e.ready

	if e.err != nil {
		return nil, e.err
	}
	return e.cs, nil
}

func (m *CartManager) open(uid string, e *cartEntry) {
	defer close(e.ready)

	cs := NewCartStore(uid, m.store, m.mylog)
	err := cs.Open(m.ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err != nil:
		e.err = err
		if m.carts[uid] == e {
			delete(m.carts, uid)
		}
	case m.carts[uid] != e:
		// released while opening
		cs.SignOut()
		e.err = core.ErrUnauthenticated
	default:
		e.cs = cs
		m.mylog.Action("cart_opened").Debug("Cart loaded", "uid", uid)
	}
}

// Release drops the in-memory cart of uid.
func (m *CartManager) Release(uid string) {
	m.mu.Lock()
	e, ok := m.carts[uid]
	delete(m.carts, uid)
	var cs *CartStore
	if ok {
		cs = e.cs
	}
	m.mu.Unlock()

	if cs != nil {
		cs.SignOut()
		m.mylog.Action("cart_released").Debug("Cart released", "uid", uid)
	}
}

// EvictIdle releases every open cart not requested for longer than idle,
// such as carts of sessions that expired without a sign-out.
func (m *CartManager) EvictIdle(idle time.Duration) int {
	cutoff := m.clock.Now().Add(-idle)

	m.mu.Lock()
	var stale []*CartStore
	for uid, e := range m.carts {
		if e.cs != nil && e.lastUsed.Before(cutoff) {
			stale = append(stale, e.cs)
			delete(m.carts, uid)
		}
	}
	m.mu.Unlock()

	for _, cs := range stale {
		cs.SignOut()
	}
	if len(stale) > 0 {
		m.mylog.Action("carts_evicted").Info("Released idle carts", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle carts until ctx ends. A non-positive idle disables it.
func (m *CartManager) Run(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		return nil
	}
	t := time.NewTicker(max(idle/4, time.Second))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.EvictIdle(idle)
		}
	}
}

// Len returns the number of carts held in memory.
func (m *CartManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.carts)
}

// Close releases every cart. It is safe to call more than once.
func (m *CartManager) Close() {
	m.unsubscribe()

	m.mu.Lock()
	carts := m.carts
	m.carts = make(map[string]*cartEntry)
	m.mu.Unlock()

	for _, e := range carts {
		m.mu.Lock()
		cs := e.cs
		m.mu.Unlock()
		if cs != nil {
			cs.SignOut()
		}
	}
}
