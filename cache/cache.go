package cache

import (
	"context"
	"errors"

	models "github.com/Ptunda/easy-shop/model"
)

// CartCache is a read-aside cache of carts. Every Delete bumps a per-user
// version; a Set only lands if the version it was given still matches, so a
// fill that read the store before an invalidation cannot outlive it.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*models.Cart, error)
	Version(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, version int64, cart *models.Cart) error
	Delete(ctx context.Context, userID int64) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleVersion is returned by Set when the cart was invalidated after
	// the version was read. The entry is not written.
	ErrStaleVersion = errors.New("cart changed since read")
)

// Nop is used when no redis is configured; every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, int64) (*models.Cart, error)      { return nil, ErrCacheMiss }
func (Nop) Version(context.Context, int64) (int64, error)         { return 0, nil }
func (Nop) Set(context.Context, int64, int64, *models.Cart) error { return nil }
func (Nop) Delete(context.Context, int64) error                   { return nil }
