package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"rupped-storefront/internal/model"
	"rupped-storefront/pkg/logger"
)

// DiskStorage writes one JSON file per cart plus an index, keeping a bounded
// cache of recently used carts in memory.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Cart
	cacheSize int
}

type CartIndex struct {
	ID        string    `json:"id"`
	Items     int       `json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Cart),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadCarts(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk cart storage initialized at %s", d.dataDir)
	return nil
}

func (d *DiskStorage) cartsDir() string {
	return filepath.Join(d.dataDir, "carts")
}

func (d *DiskStorage) cartPath(cartID string) string {
	return filepath.Join(d.cartsDir(), cartID+".json")
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "carts.json")
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		d.cartsDir(),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (d *DiskStorage) loadCarts() error {
	if _, err := os.Stat(d.indexPath()); os.IsNotExist(err) {
		return d.saveIndex([]*CartIndex{})
	}

	indexes, err := d.readIndex()
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		cart, err := d.loadCartFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load cart %s: %v", index.ID, err)
			continue
		}
		d.cache[index.ID] = cart
	}
	return nil
}

func (d *DiskStorage) readIndex() ([]*CartIndex, error) {
	data, err := os.ReadFile(d.indexPath())
	if err != nil {
		return nil, err
	}

	var indexes []*CartIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return indexes, nil
}

func (d *DiskStorage) loadCartFromFile(cartID string) (*model.Cart, error) {
	data, err := os.ReadFile(d.cartPath(cartID))
	if err != nil {
		return nil, err
	}

	var cart model.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &cart, nil
}

// writeAtomic writes through a temp file so a crash never leaves a torn file.
func writeAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveIndex(indexes []*CartIndex) error {
	return writeAtomic(d.indexPath(), indexes)
}

func (d *DiskStorage) updateIndex() error {
	files, err := os.ReadDir(d.cartsDir())
	if err != nil {
		return err
	}

	indexes := make([]*CartIndex, 0, len(files))
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		cartID := strings.TrimSuffix(file.Name(), ".json")
		cart, err := d.loadCartFromFile(cartID)
		if err != nil {
			logger.Errorf("Failed to load cart %s for index update: %v", cartID, err)
			continue
		}

		indexes = append(indexes, &CartIndex{
			ID:        cart.ID,
			Items:     len(cart.Items),
			CreatedAt: cart.CreatedAt,
			UpdatedAt: cart.UpdatedAt,
		})
	}

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].UpdatedAt.After(indexes[j].UpdatedAt)
	})
	return d.saveIndex(indexes)
}

func (d *DiskStorage) CreateCart(cart *model.Cart) error {
	if cart == nil || cart.ID == "" {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.cartPath(cart.ID)); err == nil {
		return ErrCartExists
	}

	if err := writeAtomic(d.cartPath(cart.ID), cart); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.updateIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[cart.ID] = cloneCart(cart)
	d.evictCache()
	return nil
}

func (d *DiskStorage) GetCart(cartID string) (*model.Cart, error) {
	d.mu.RLock()
	if cart, exists := d.cache[cartID]; exists {
		d.mu.RUnlock()
		return cloneCart(cart), nil
	}
	d.mu.RUnlock()

	cart, err := d.loadCartFromFile(cartID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[cartID] = cart
	d.evictCache()
	d.mu.Unlock()

	return cloneCart(cart), nil
}

func (d *DiskStorage) UpdateCart(cart *model.Cart) error {
	if cart == nil || cart.ID == "" {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.cartPath(cart.ID)); os.IsNotExist(err) {
		return ErrCartNotFound
	}

	if err := writeAtomic(d.cartPath(cart.ID), cart); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := d.updateIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[cart.ID] = cloneCart(cart)
	d.evictCache()
	return nil
}

func (d *DiskStorage) DeleteCart(cartID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.cartPath(cartID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrCartNotFound
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, cartID)
	return d.updateIndex()
}

// ListCarts reads every cart from disk, most recently updated first.
func (d *DiskStorage) ListCarts() ([]*model.Cart, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes, err := d.readIndex()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	carts := make([]*model.Cart, 0, len(indexes))
	for _, index := range indexes {
		if cached, ok := d.cache[index.ID]; ok {
			carts = append(carts, cloneCart(cached))
			continue
		}
		cart, err := d.loadCartFromFile(index.ID)
		if err != nil {
			logger.Warnf("Skipping unreadable cart %s: %v", index.ID, err)
			continue
		}
		carts = append(carts, cart)
	}
	return carts, nil
}

// evictCache drops the least recently updated carts. Callers hold d.mu.
func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, cart := range d.cache {
		entries = append(entries, cacheEntry{id: id, updatedAt: cart.UpdatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Cart)
	return nil
}

// Backup copies the cart files and index into backup/backup_<unix>.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().Unix()))
	dstCarts := filepath.Join(backupDir, "carts")
	if err := os.MkdirAll(dstCarts, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := copyDir(d.cartsDir(), dstCarts); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := copyFile(d.indexPath(), filepath.Join(backupDir, "carts.json")); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
