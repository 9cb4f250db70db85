package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, c.Len())

	// demo cart items must exist
	for _, id := range []string{"1", "4", "6"} {
		_, ok := c.Get(id)
		assert.True(t, ok, "product %s", id)
	}

	p, ok := c.Get("3")
	require.True(t, ok)
	assert.Equal(t, "tents", p.Category)
	assert.Equal(t, 349.99, p.Price)
	assert.NotEmpty(t, p.Specifications)

	cats := c.Categories()
	require.NotEmpty(t, cats)
	assert.Equal(t, "accessories", cats[0].Name)
	assert.Equal(t, 3, cats[0].Count)
	assert.True(t, c.HasCategory("footwear"))
	assert.False(t, c.HasCategory("kayaks"))
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: a
  name: Only Item
  price: 10
  category: misc
`), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	_, err := Parse([]byte("[]"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = Parse([]byte("- {id: a}\n- {id: a}\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = Parse([]byte("- {name: nameless}\n"))
	assert.ErrorContains(t, err, "no id")

	_, err = Parse([]byte("not: [valid"))
	assert.Error(t, err)
}
