package services

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/identity"
	"restaurant-app/internal/xpkg/clock"
	"restaurant-app/internal/xpkg/models"
)

var testStart = time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)

// stubStore wraps a memory store, counts conditional status writes and can
// be told to fail.
type stubStore struct {
	docstore.Store

	mu            sync.Mutex
	createErr     error
	getErr        error
	setErr        error
	statusUpdates int
}

func newStubStore(clk clock.Clock) *stubStore {
	return &stubStore{Store: docstore.NewMemory(clk)}
}

func (s *stubStore) failGet(err error) {
	s.mu.Lock()
	s.getErr = err
	s.mu.Unlock()
}

func (s *stubStore) Create(ctx context.Context, collection string, data docstore.Document) (string, error) {
	s.mu.Lock()
	err := s.createErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Store.Create(ctx, collection, data)
}

func (s *stubStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Store.Get(ctx, collection, id)
}

func (s *stubStore) Set(ctx context.Context, collection, id string, data docstore.Document, mergeFields bool) error {
	s.mu.Lock()
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, collection, id, data, mergeFields)
}

func (s *stubStore) UpdateIf(ctx context.Context, collection, id string, conds []docstore.Filter, patch docstore.Document) (bool, error) {
	if _, ok := patch["status"]; ok {
		s.mu.Lock()
		s.statusUpdates++
		s.mu.Unlock()
	}
	return s.Store.UpdateIf(ctx, collection, id, conds, patch)
}

func (s *stubStore) statusWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusUpdates
}

func countDocs(t *testing.T, store docstore.Store, collection string) int {
	t.Helper()
	docs, err := store.Query(context.Background(), docstore.Query{Collection: collection})
	if err != nil {
		t.Fatalf("query %s: %v", collection, err)
	}
	return len(docs)
}

type fakePublisher struct {
	mu         sync.Mutex
	orders     []models.OrderCreated
	emails     []models.EmailJob
	publishErr error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, msg models.OrderCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return p.publishErr
	}
	p.orders = append(p.orders, msg)
	return nil
}

func (p *fakePublisher) SendAccountEmail(ctx context.Context, job models.EmailJob) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emails = append(p.emails, job)
	return nil
}

func (p *fakePublisher) published() []models.OrderCreated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OrderCreated(nil), p.orders...)
}

type fakeAuth struct {
	mu        sync.Mutex
	listeners []func(identity.AuthEvent)
}

func (a *fakeAuth) OnAuthStateChanged(fn func(identity.AuthEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
	return func() {}
}

func (a *fakeAuth) emit(ev identity.AuthEvent) {
	a.mu.Lock()
	ls := slices.Clone(a.listeners)
	a.mu.Unlock()
	for _, fn := range ls {
		fn(ev)
	}
}
