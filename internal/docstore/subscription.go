package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Snapshot is the full result of a subscribed query at one point in time.
// Err is set when refreshing the query failed; Docs is then empty.
type Snapshot struct {
	Docs []Doc
	Err  error
}

// Subscription delivers snapshots on C until Close is called or its context
// ends. Only the latest undelivered snapshot is kept.
type Subscription struct {
	C <-chan Snapshot

	c      chan Snapshot
	query  Query
	hub    *hub
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// Close stops delivery and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.hub.remove(s)

		s.mu.Lock()
		s.closed = true
		close(s.c)
		s.mu.Unlock()
	})
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.c <- snap:
	default:
		// replace the stale snapshot nobody has read yet
		select {
		case <-s.c:
		default:
		}
		s.c <- snap
	}
}

func (s *Subscription) refresh() {
	docs, err := s.hub.load(s.ctx, s.query)
	if s.ctx.Err() != nil {
		return
	}
	s.deliver(Snapshot{Docs: docs, Err: err})
}

type loader func(ctx context.Context, q Query) ([]Doc, error)

// hub tracks open subscriptions and refreshes those watching a document
// after it changes.
type hub struct {
	load loader

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newHub(load loader) *hub {
	return &hub{
		load: load,
		subs: make(map[*Subscription]struct{}),
	}
}

func (h *hub) subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: empty collection", ErrInvalidArgument)
	}
	if err := validFilters(q.Where); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	c := make(chan Snapshot, 1)
	s := &Subscription{
		C:      c,
		c:      c,
		query:  q,
		hub:    h,
		ctx:    subCtx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	docs, err := h.load(subCtx, q)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.deliver(Snapshot{Docs: docs})

	go func() {
		<-subCtx.Done()
		s.Close()
	}()

	return s, nil
}

func (h *hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// notify refreshes the subscriptions a write to collection/id can affect.
// An empty id refreshes every subscription of the collection.
func (h *hub) notify(collection, id string) {
	h.mu.Lock()
	var subs []*Subscription
	for s := range h.subs {
		if s.query.Collection != collection {
			continue
		}
		if id != "" && s.query.ID != "" && s.query.ID != id {
			continue
		}
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.refresh()
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// changePayload is the NOTIFY payload of a write to collection/id.
func changePayload(collection, id string) string {
	return collection + "/" + id
}

// parseChange splits a NOTIFY payload. A payload without an id names the
// whole collection.
func parseChange(payload string) (collection, id string) {
	collection, id, _ = strings.Cut(payload, "/")
	return collection, id
}
