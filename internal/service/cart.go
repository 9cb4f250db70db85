package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"rupped-storefront/internal/catalog"
	"rupped-storefront/internal/metrics"
	"rupped-storefront/internal/model"
	"rupped-storefront/internal/storage"
	"rupped-storefront/pkg/logger"

	"github.com/oklog/ulid/v2"
)

const (
	PromoCode             = "rupped10"
	promoRate             = 0.10
	freeShippingThreshold = 100.0
	flatShipping          = 9.99
	taxRate               = 0.08
)

var (
	ErrInvalidPromo    = errors.New("invalid promo code")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotInCart   = errors.New("item not in cart")
)

// DemoItems seed a new cart when demo seeding is on.
var DemoItems = []model.CartItem{
	{ProductID: "1", Quantity: 1},
	{ProductID: "4", Quantity: 1},
	{ProductID: "6", Quantity: 1},
}

type CartService struct {
	store    storage.Storage
	catalog  *catalog.Catalog
	seedDemo bool
	ttl      time.Duration
	now      func() time.Time

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewCartService(store storage.Storage, c *catalog.Catalog, seedDemo bool, ttl time.Duration) *CartService {
	return &CartService{
		store:    store,
		catalog:  c,
		seedDemo: seedDemo,
		ttl:      ttl,
		now:      time.Now,
		entropy:  ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (s *CartService) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func (s *CartService) Create() (*model.CartSummary, error) {
	now := s.now()
	cart := &model.Cart{
		ID:        s.newID(),
		Items:     []model.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if s.seedDemo {
		cart.Items = append(cart.Items, DemoItems...)
	}

	if err := s.store.CreateCart(cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	metrics.CartOperations.WithLabelValues("create").Inc()
	metrics.ActiveCarts.Inc()

	summary := s.Summarize(cart)
	return &summary, nil
}

func (s *CartService) Get(cartID string) (*model.CartSummary, error) {
	cart, err := s.store.GetCart(cartID)
	if err != nil {
		return nil, err
	}
	summary := s.Summarize(cart)
	return &summary, nil
}

// SetQuantity sets the quantity of a product, adding it when absent.
func (s *CartService) SetQuantity(cartID, productID string, quantity int) (*model.CartSummary, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if _, ok := s.catalog.Get(productID); !ok {
		return nil, ErrProductNotFound
	}

	return s.mutate(cartID, "set_quantity", func(cart *model.Cart) error {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity = quantity
				return nil
			}
		}
		cart.Items = append(cart.Items, model.CartItem{ProductID: productID, Quantity: quantity})
		return nil
	})
}

func (s *CartService) RemoveItem(cartID, productID string) (*model.CartSummary, error) {
	return s.mutate(cartID, "remove_item", func(cart *model.Cart) error {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
				return nil
			}
		}
		return ErrItemNotInCart
	})
}

// ApplyPromo accepts the promo code case-insensitively.
func (s *CartService) ApplyPromo(cartID, code string) (*model.CartSummary, error) {
	if !strings.EqualFold(strings.TrimSpace(code), PromoCode) {
		return nil, ErrInvalidPromo
	}
	return s.mutate(cartID, "apply_promo", func(cart *model.Cart) error {
		cart.PromoApplied = true
		return nil
	})
}

func (s *CartService) mutate(cartID, op string, fn func(*model.Cart) error) (*model.CartSummary, error) {
	cart, err := s.store.GetCart(cartID)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}

	cart.UpdatedAt = s.now()
	if err := s.store.UpdateCart(cart); err != nil {
		return nil, fmt.Errorf("update cart: %w", err)
	}
	metrics.CartOperations.WithLabelValues(op).Inc()

	summary := s.Summarize(cart)
	return &summary, nil
}

// Summarize prices a cart against the catalog. Products missing from the
// catalog are skipped.
func (s *CartService) Summarize(cart *model.Cart) model.CartSummary {
	summary := model.CartSummary{
		CartID:       cart.ID,
		Lines:        make([]model.CartLine, 0, len(cart.Items)),
		PromoApplied: cart.PromoApplied,
	}

	var subtotal float64
	for _, item := range cart.Items {
		product, ok := s.catalog.Get(item.ProductID)
		if !ok {
			logger.Warnf("cart %s references unknown product %s", cart.ID, item.ProductID)
			continue
		}
		lineTotal := product.Price * float64(item.Quantity)
		subtotal += lineTotal
		summary.ItemCount += item.Quantity
		summary.Lines = append(summary.Lines, model.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     product.Price,
			Quantity:  item.Quantity,
			LineTotal: roundCents(lineTotal),
		})
	}

	discount := 0.0
	if cart.PromoApplied {
		discount = subtotal * promoRate
	}
	shipping := flatShipping
	if subtotal > freeShippingThreshold {
		shipping = 0
	}
	tax := (subtotal - discount) * taxRate

	summary.Subtotal = roundCents(subtotal)
	summary.Discount = roundCents(discount)
	summary.Shipping = shipping
	summary.FreeShipping = shipping == 0
	summary.Tax = roundCents(tax)
	summary.Total = roundCents(subtotal - discount + shipping + tax)
	return summary
}

// CleanupExpired deletes carts idle for longer than the TTL and returns how
// many were removed.
func (s *CartService) CleanupExpired() int {
	if s.ttl <= 0 {
		return 0
	}

	carts, err := s.store.ListCarts()
	if err != nil {
		logger.Errorf("list carts for cleanup: %v", err)
		return 0
	}

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for _, cart := range carts {
		if !cart.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := s.store.DeleteCart(cart.ID); err != nil && !errors.Is(err, storage.ErrCartNotFound) {
			logger.Errorf("delete expired cart %s: %v", cart.ID, err)
			continue
		}
		removed++
	}

	metrics.ActiveCarts.Set(float64(len(carts) - removed))
	if removed > 0 {
		logger.Infof("Cleaned up %d expired carts", removed)
	}
	return removed
}

// StartCleanup runs CleanupExpired every interval until ctx is done.
func (s *CartService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.CleanupExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
