package storage

import (
	"sort"
	"sync"

	"rupped-storefront/internal/model"
)

type MemoryStorage struct {
	carts map[string]*model.Cart
	mu    sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		carts: make(map[string]*model.Cart),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts = make(map[string]*model.Cart)
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) CreateCart(cart *model.Cart) error {
	if cart == nil || cart.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.carts[cart.ID]; exists {
		return ErrCartExists
	}
	m.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (m *MemoryStorage) GetCart(cartID string) (*model.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cart, exists := m.carts[cartID]
	if !exists {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *MemoryStorage) UpdateCart(cart *model.Cart) error {
	if cart == nil || cart.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.carts[cart.ID]; !exists {
		return ErrCartNotFound
	}
	m.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (m *MemoryStorage) DeleteCart(cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.carts[cartID]; !exists {
		return ErrCartNotFound
	}
	delete(m.carts, cartID)
	return nil
}

// ListCarts returns carts most recently updated first.
func (m *MemoryStorage) ListCarts() ([]*model.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	carts := make([]*model.Cart, 0, len(m.carts))
	for _, cart := range m.carts {
		carts = append(carts, cloneCart(cart))
	}
	sort.Slice(carts, func(i, j int) bool {
		return carts[i].UpdatedAt.After(carts[j].UpdatedAt)
	})
	return carts, nil
}
