// Package catalog holds the paintings offered by the shop.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flexyframe/artbot/internal/domain"
)

//go:embed paintings.yaml
var embedded []byte

// Painting is one sellable artwork.
type Painting struct {
	ID          int64  `yaml:"id" json:"id" validate:"gt=0"`
	Title       string `yaml:"title" json:"title" validate:"required"`
	FullTitle   string `yaml:"full_title" json:"fullTitle"`
	Category    string `yaml:"category" json:"category" validate:"required"`
	Price       int64  `yaml:"price" json:"price" validate:"gt=0"`
	File        string `yaml:"file" json:"file" validate:"required"`
	Badge       string `yaml:"badge" json:"badge,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Item returns the snapshot an order captures.
func (p Painting) Item() domain.Item {
	return domain.Item{ID: p.ID, Title: p.Title, Price: p.Price}
}

// Catalog is an immutable, validated list of paintings.
type Catalog struct {
	paintings []Painting
	byID      map[int64]int
}

type document struct {
	Paintings []Painting `yaml:"paintings"`
}

// Load reads the catalog from path, or the built-in list when path is empty.
func Load(path string) (*Catalog, error) {
	data := embedded
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = raw
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(doc.Paintings)
}

// New validates paintings and builds a catalog. Duplicate ids are rejected.
func New(paintings []Painting) (*Catalog, error) {
	v := validatorv10.New()
	c := &Catalog{byID: make(map[int64]int, len(paintings))}
	for _, p := range paintings {
		if err := v.Struct(p); err != nil {
			return nil, fmt.Errorf("painting %d: %w", p.ID, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("painting %d: duplicate id", p.ID)
		}
		if p.FullTitle == "" {
			p.FullTitle = p.Title
		}
		c.byID[p.ID] = len(c.paintings)
		c.paintings = append(c.paintings, p)
	}
	return c, nil
}

// All returns every painting in catalog order.
func (c *Catalog) All() []Painting {
	return append([]Painting(nil), c.paintings...)
}

// ByID looks a painting up by id.
func (c *Catalog) ByID(id int64) (Painting, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Painting{}, false
	}
	return c.paintings[i], true
}

// Categories returns distinct categories sorted by name.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range c.paintings {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// ByCategory returns paintings of one category.
func (c *Catalog) ByCategory(category string) []Painting {
	var out []Painting
	for _, p := range c.paintings {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Search matches query case-insensitively against titles and categories.
// Queries shorter than two runes match nothing.
func (c *Catalog) Search(query string) []Painting {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < 2 {
		return nil
	}
	var out []Painting
	for _, p := range c.paintings {
		if strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.FullTitle), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out
}

var imageExtensions = []string{".jpg", ".png", ".jpeg", ".webp"}

// ImagePath resolves the image of p under root/<category>/<file>, trying
// sibling extensions when the exact file is missing. It returns "" when no
// image exists.
func ImagePath(root string, p Painting) string {
	if root == "" {
		return ""
	}
	exact := filepath.Join(root, p.Category, p.File)
	if fileExists(exact) {
		return exact
	}
	base := strings.TrimSuffix(p.File, filepath.Ext(p.File))
	for _, ext := range imageExtensions {
		alt := filepath.Join(root, p.Category, base+ext)
		if fileExists(alt) {
			return alt
		}
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
