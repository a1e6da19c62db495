package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"restaurant-app/internal/xpkg/clock"

	"github.com/google/uuid"
)

// Memory keeps documents in process memory.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Document
	clock       clock.Clock
	hub         *hub
}

func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.NewSystem()
	}
	m := &Memory{
		collections: make(map[string]map[string]Document),
		clock:       clk,
	}
	m.hub = newHub(m.Query)
	return m
}

func (m *Memory) Create(ctx context.Context, collection string, data Document) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: empty collection", ErrInvalidArgument)
	}
	doc, err := normalize(data, m.clock.Now())
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.coll(collection)[id] = doc
	m.mu.Unlock()

	m.hub.notify(collection, id)
	return id, nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(doc), nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data Document, mergeFields bool) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidArgument)
	}
	doc, err := normalize(data, m.clock.Now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	coll := m.coll(collection)
	if cur, ok := coll[id]; ok && mergeFields {
		doc = merge(cur, doc)
	}
	coll[id] = doc
	m.mu.Unlock()

	m.hub.notify(collection, id)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Document) error {
	_, err := m.update(collection, id, nil, patch)
	return err
}

func (m *Memory) UpdateIf(ctx context.Context, collection, id string, conds []Filter, patch Document) (bool, error) {
	if err := validFilters(conds); err != nil {
		return false, err
	}
	return m.update(collection, id, conds, patch)
}

func (m *Memory) update(collection, id string, conds []Filter, patch Document) (bool, error) {
	now := m.clock.Now()
	doc, err := normalize(patch, now)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	cur, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotFound
	}
	if !matches(cur, conds, now) {
		m.mu.Unlock()
		return false, nil
	}
	m.collections[collection][id] = merge(cur, doc)
	m.mu.Unlock()

	m.hub.notify(collection, id)
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	_, ok := m.collections[collection][id]
	delete(m.collections[collection], id)
	m.mu.Unlock()

	if ok {
		m.hub.notify(collection, id)
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Doc, error) {
	if err := validFilters(q.Where); err != nil {
		return nil, err
	}
	now := m.clock.Now()

	m.mu.RLock()
	var docs []Doc
	for id, data := range m.collections[q.Collection] {
		if q.ID != "" && id != q.ID {
			continue
		}
		if !matches(data, q.Where, now) {
			continue
		}
		docs = append(docs, Doc{ID: id, Data: clone(data)})
	}
	m.mu.RUnlock()

	sortDocs(docs, q.OrderBy, q.Desc)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	return m.hub.subscribe(ctx, q)
}

// coll must be called with mu held for writing.
func (m *Memory) coll(name string) map[string]Document {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]Document)
		m.collections[name] = c
	}
	return c
}

func sortDocs(docs []Doc, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		if field != "" {
			a, aok := docs[i].Data[field]
			b, bok := docs[j].Data[field]
			switch {
			case aok && !bok:
				return !desc
			case !aok && bok:
				return desc
			case aok && bok:
				if c := compareValues(a, b); c != 0 {
					if desc {
						return c > 0
					}
					return c < 0
				}
			}
		}
		return docs[i].ID < docs[j].ID
	})
}

// compareValues orders strings before numbers, numbers numerically and
// strings lexically, as jsonb ordering does.
func compareValues(a, b any) int {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	as, aStr := a.(string)
	bs, bStr := b.(string)

	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aStr && bStr:
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	case aStr && bNum:
		return -1
	case aNum && bStr:
		return 1
	}
	return 0
}
