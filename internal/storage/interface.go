package storage

import (
	"rupped-storefront/internal/model"
)

// Storage keeps shopping carts. Implementations hand out copies, so callers
// must Update after mutating a cart.
type Storage interface {
	// 购物车管理
	CreateCart(cart *model.Cart) error
	GetCart(cartID string) (*model.Cart, error)
	UpdateCart(cart *model.Cart) error
	DeleteCart(cartID string) error
	ListCarts() ([]*model.Cart, error)

	// 存储管理
	Init() error
	Close() error
	Backup() error
}

// New picks the implementation named by storageType ("memory" or "disk").
func New(storageType, dataDir string, cacheSize int) (Storage, error) {
	switch storageType {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(dataDir, cacheSize), nil
	default:
		return nil, ErrUnknownType
	}
}

func cloneCart(c *model.Cart) *model.Cart {
	out := *c
	out.Items = append([]model.CartItem(nil), c.Items...)
	return &out
}
