package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rupped-storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCart(id string, updated time.Time, items ...model.CartItem) *model.Cart {
	return &model.Cart{
		ID:        id,
		Items:     items,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func backends(t *testing.T) map[string]Storage {
	disk := NewDiskStorage(t.TempDir(), 2)
	require.NoError(t, disk.Init())
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"disk":   disk,
	}
}

func TestStorageCRUD(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cart := newCart("c1", now, model.CartItem{ProductID: "1", Quantity: 1})
			require.NoError(t, s.CreateCart(cart))
			assert.ErrorIs(t, s.CreateCart(cart), ErrCartExists)

			got, err := s.GetCart("c1")
			require.NoError(t, err)
			assert.Equal(t, cart.Items, got.Items)

			// returned carts are copies
			got.Items[0].Quantity = 5
			again, err := s.GetCart("c1")
			require.NoError(t, err)
			assert.Equal(t, 1, again.Items[0].Quantity)

			require.NoError(t, s.UpdateCart(got))
			again, err = s.GetCart("c1")
			require.NoError(t, err)
			assert.Equal(t, 5, again.Items[0].Quantity)

			assert.ErrorIs(t, s.UpdateCart(newCart("missing", now)), ErrCartNotFound)
			assert.ErrorIs(t, s.CreateCart(&model.Cart{}), ErrInvalidData)

			require.NoError(t, s.DeleteCart("c1"))
			_, err = s.GetCart("c1")
			assert.ErrorIs(t, err, ErrCartNotFound)
			assert.ErrorIs(t, s.DeleteCart("c1"), ErrCartNotFound)
		})
	}
}

func TestStorageListOrder(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateCart(newCart("old", base.Add(-2*time.Hour))))
			require.NoError(t, s.CreateCart(newCart("new", base)))
			require.NoError(t, s.CreateCart(newCart("mid", base.Add(-time.Hour))))

			carts, err := s.ListCarts()
			require.NoError(t, err)
			ids := make([]string, 0, len(carts))
			for _, c := range carts {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, []string{"new", "mid", "old"}, ids)
		})
	}
}

func TestDiskStorageReloadAndBackup(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC().Truncate(time.Second)

	first := NewDiskStorage(dir, 10)
	require.NoError(t, first.Init())
	require.NoError(t, first.CreateCart(newCart("persisted", now, model.CartItem{ProductID: "4", Quantity: 2})))
	require.NoError(t, first.Backup())
	require.NoError(t, first.Close())

	second := NewDiskStorage(dir, 10)
	require.NoError(t, second.Init())
	got, err := second.GetCart("persisted")
	require.NoError(t, err)
	assert.Equal(t, []model.CartItem{{ProductID: "4", Quantity: 2}}, got.Items)

	backups, err := os.ReadDir(filepath.Join(dir, "backup"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.FileExists(t, filepath.Join(dir, "backup", backups[0].Name(), "carts", "persisted.json"))
	assert.FileExists(t, filepath.Join(dir, "backup", backups[0].Name(), "carts.json"))
}

func TestNew(t *testing.T) {
	s, err := New("memory", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, s)

	s, err = New("disk", t.TempDir(), 4)
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, s)

	_, err = New("pebble", "", 0)
	assert.ErrorIs(t, err, ErrUnknownType)
}
