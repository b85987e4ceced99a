package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Additional-Code/subext/internal/config"
)

var (
	valuePending    = []byte("pending")
	valueRegistered = []byte("registered")
)

// Guard prevents registering the same order line item twice when the
// platform retries an extension call.
type Guard struct {
	store      Store
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewGuard builds a Guard on top of the configured store. Claims that are
// never confirmed expire after twice the extension deadline.
func NewGuard(store Store, cfg config.Config) *Guard {
	return &Guard{
		store:      store,
		ttl:        cfg.Cache.DefaultTTL,
		pendingTTL: 2 * cfg.Extension.Deadline,
	}
}

// Claim reserves the line item for registration. It returns false when the
// item was already registered or another invocation is registering it.
func (g *Guard) Claim(ctx context.Context, orderID, lineItemID string) (bool, error) {
	return g.store.SetIfAbsent(ctx, key(orderID, lineItemID), valuePending, g.pendingTTL)
}

// Confirm marks a claimed line item as registered.
func (g *Guard) Confirm(ctx context.Context, orderID, lineItemID string) error {
	return g.store.Set(ctx, key(orderID, lineItemID), valueRegistered, g.ttl)
}

// Release drops a claim so a later retry can register the line item.
func (g *Guard) Release(ctx context.Context, orderID, lineItemID string) error {
	return g.store.Delete(ctx, key(orderID, lineItemID))
}

// registered reports whether the line item was confirmed.
func (g *Guard) registered(ctx context.Context, orderID, lineItemID string) (bool, error) {
	value, err := g.store.Get(ctx, key(orderID, lineItemID))
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return string(value) == string(valueRegistered), nil
}

func key(orderID, lineItemID string) string {
	return fmt.Sprintf("subscriptions:%s:%s", orderID, lineItemID)
}
