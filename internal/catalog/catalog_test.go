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
	require.NotEmpty(t, c.All())

	p, ok := c.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "Аркейн Триумвират", p.Title)
	assert.Equal(t, int64(4200), p.Item().Price)

	_, ok = c.ByID(999)
	assert.False(t, ok)
}

func TestNewRejectsInvalidAndDuplicate(t *testing.T) {
	_, err := New([]Painting{{ID: 1, Title: "", Category: "x", Price: 1, File: "a.jpg"}})
	assert.Error(t, err)

	_, err = New([]Painting{
		{ID: 1, Title: "a", Category: "x", Price: 1, File: "a.jpg"},
		{ID: 1, Title: "b", Category: "x", Price: 1, File: "b.jpg"},
	})
	assert.Error(t, err)
}

func TestSearchAndCategories(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	found := c.Search("давид")
	require.Len(t, found, 2)
	assert.Empty(t, c.Search("д"))

	assert.Contains(t, c.Categories(), "Live")
	assert.Len(t, c.ByCategory("Live"), 3)
}

func TestImagePathExtensionFallback(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Танос"), 0o755))
	want := filepath.Join(root, "Танос", "Танос Император Бесконечности.png")
	require.NoError(t, os.WriteFile(want, []byte("img"), 0o644))

	p := Painting{Category: "Танос", File: "Танос Император Бесконечности.jpg"}
	assert.Equal(t, want, ImagePath(root, p))
	assert.Equal(t, "", ImagePath(root, Painting{Category: "none", File: "x.jpg"}))
}
