package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"restaurant-app/internal/docstore"
	"restaurant-app/internal/storefront/app/core"
	"restaurant-app/internal/storefront/domain/models"
	"restaurant-app/internal/xpkg/logger"
)

// CartStore holds the cart of one signed-in user and mirrors every change to
// carts/<uid>. Local mutations are serialized; remote snapshots replace the
// local view only while no local write is in flight and only when they are not
// older than the last local write.
type CartStore struct {
	store core.IDocStore
	mylog logger.Logger

	mu      sync.Mutex
	uid     string
	lines   []models.CartLine
	pending int
	// rev counts local writes; it is stored with the items so echoes of
	// earlier writes can be told apart from newer remote changes.
	rev int64

	// writeMu orders gateway writes so the last one carries the newest state.
	writeMu sync.Mutex

	sub *docstore.Subscription
}

// NewCartStore returns an empty cart for uid. An empty uid is a signed-out
// cart that rejects mutations.
func NewCartStore(uid string, store core.IDocStore, mylog logger.Logger) *CartStore {
	return &CartStore{
		store: store,
		mylog: mylog.With("uid", uid),
		uid:   uid,
	}
}

// Open loads the persisted cart, creating an empty one when none exists, and
// starts following remote changes until ctx ends or SignOut is called.
func (c *CartStore) Open(ctx context.Context) error {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid == "" {
		return core.ErrUnauthenticated
	}

	doc, err := c.store.Get(ctx, core.CollectionCarts, uid)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		if err := c.store.Set(ctx, core.CollectionCarts, uid, docstore.Document{"items": []models.CartLine{}}, true); err != nil {
			return fmt.Errorf("%w: create cart: %v", core.ErrGatewayUnavailable, err)
		}
	case err != nil:
		return fmt.Errorf("%w: load cart: %v", core.ErrGatewayUnavailable, err)
	default:
		lines, rev, err := decodeCart(doc)
		if err != nil {
			c.mylog.Action("cart_decode_failed").Warn("Stored cart is malformed, starting empty", "error", err.Error())
		}
		c.mu.Lock()
		c.lines = lines
		c.rev = rev
		c.mu.Unlock()
	}

	sub, err := c.store.Subscribe(ctx, docstore.Query{Collection: core.CollectionCarts, ID: uid})
	if err != nil {
		return fmt.Errorf("%w: watch cart: %v", core.ErrGatewayUnavailable, err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	go c.follow(sub)
	return nil
}

func (c *CartStore) follow(sub *docstore.Subscription) {
	for snap := range sub.C {
		c.applyRemote(snap)
	}
}

func (c *CartStore) applyRemote(snap docstore.Snapshot) {
	if snap.Err != nil {
		c.mylog.Action("cart_snapshot_failed").Warn("Failed to refresh cart", "error", snap.Err.Error())
		return
	}

	var (
		lines []models.CartLine
		rev   int64
	)
	if len(snap.Docs) > 0 {
		var err error
		if lines, rev, err = decodeCart(snap.Docs[0].Data); err != nil {
			c.mylog.Action("cart_decode_failed").Warn("Ignoring malformed cart snapshot", "error", err.Error())
			return
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 || c.uid == "" || rev < c.rev {
		return
	}
	c.lines = lines
	c.rev = rev
}

func decodeCart(doc docstore.Document) ([]models.CartLine, int64, error) {
	var cart struct {
		Items []models.CartLine `json:"items"`
		Rev   int64             `json:"rev"`
	}
	if err := docstore.Decode(doc, &cart); err != nil {
		return nil, 0, err
	}
	return cart.Items, cart.Rev, nil
}

// Lines returns a copy of the current cart.
func (c *CartStore) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// AddItem increments the quantity of an existing line with the same name or
// appends the item with quantity 1.
func (c *CartStore) AddItem(ctx context.Context, item models.CartLine) error {
	return c.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		for i := range lines {
			if lines[i].Name == item.Name {
				lines[i].Quantity++
				return lines
			}
		}
		item.Quantity = 1
		return append(lines, item)
	})
}

// IncreaseQuantity is a no-op when no line has that name.
func (c *CartStore) IncreaseQuantity(ctx context.Context, name string) error {
	return c.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		for i := range lines {
			if lines[i].Name == name {
				lines[i].Quantity++
			}
		}
		return lines
	})
}

// DecreaseQuantity removes the line when its quantity reaches zero.
func (c *CartStore) DecreaseQuantity(ctx context.Context, name string) error {
	return c.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		out := lines[:0]
		for _, l := range lines {
			if l.Name == name {
				l.Quantity--
				if l.Quantity <= 0 {
					continue
				}
			}
			out = append(out, l)
		}
		return out
	})
}

func (c *CartStore) RemoveItem(ctx context.Context, name string) error {
	return c.mutate(ctx, func(lines []models.CartLine) []models.CartLine {
		out := lines[:0]
		for _, l := range lines {
			if l.Name != name {
				out = append(out, l)
			}
		}
		return out
	})
}

func (c *CartStore) Clear(ctx context.Context) error {
	return c.mutate(ctx, func([]models.CartLine) []models.CartLine {
		return nil
	})
}

// SignOut empties the in-memory cart and stops following remote changes.
// The persisted cart is kept.
func (c *CartStore) SignOut() {
	c.mu.Lock()
	c.uid = ""
	c.lines = nil
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (c *CartStore) mutate(ctx context.Context, fn func([]models.CartLine) []models.CartLine) error {
	c.mu.Lock()
	if c.uid == "" {
		c.mu.Unlock()
		return core.ErrUnauthenticated
	}
	lines := make([]models.CartLine, len(c.lines))
	copy(lines, c.lines)
	c.lines = fn(lines)
	c.rev++
	c.pending++
	c.mu.Unlock()

	err := c.persist(ctx)

	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
	return err
}

func (c *CartStore) persist(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	uid := c.uid
	rev := c.rev
	items := make([]models.CartLine, len(c.lines))
	copy(items, c.lines)
	c.mu.Unlock()

	if uid == "" {
		return nil
	}
	if err := c.store.Set(ctx, core.CollectionCarts, uid, docstore.Document{"items": items, "rev": rev}, true); err != nil {
		c.mylog.Action("cart_save_failed").Error("Failed to save cart", err)
		return fmt.Errorf("%w: save cart: %v", core.ErrGatewayUnavailable, err)
	}
	return nil
}
