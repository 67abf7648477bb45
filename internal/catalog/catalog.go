// Package catalog holds the set of sellable products and their stock levels.
//
// A Catalog is not safe for concurrent use; the inventory coordinator owns it
// and serializes access.
package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"MiniPOS/internal/apperr"
)

// References reports whether some other aggregate still points at a product.
type References interface {
	References(productID string) bool
}

type Catalog struct {
	products []Product
	index    map[string]int
	newID    func() string
}

func New() *Catalog {
	return &Catalog{
		index: make(map[string]int),
		newID: func() string { return "p_" + uuid.NewString() },
	}
}

// WithIDGenerator replaces the id source, mostly for tests.
func (c *Catalog) WithIDGenerator(fn func() string) *Catalog {
	c.newID = fn
	return c
}

func (c *Catalog) Add(in Input) (Product, error) {
	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Product{}, err
	}

	p := Product{ID: c.newID()}.apply(in)
	c.index[p.ID] = len(c.products)
	c.products = append(c.products, p)
	return p, nil
}

func (c *Catalog) Edit(id string, in Input) (Product, error) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, apperr.NotFound("product", id)
	}

	in = in.normalize()
	if err := in.Validate(); err != nil {
		return Product{}, err
	}

	c.products[i] = c.products[i].apply(in)
	return c.products[i], nil
}

// AdjustStock sets stock to max(0, stock+delta). The second return value is
// the number of units that were dropped by the clamp; it is non-zero only when
// a caller subtracted more than was on hand.
func (c *Catalog) AdjustStock(id string, delta int) (Product, int, error) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, 0, apperr.NotFound("product", id)
	}

	next := AddQuantity(c.products[i].Stock, delta)
	clamped := 0
	if next < 0 {
		clamped = math.MaxInt
		if next != math.MinInt {
			clamped = -next
		}
		next = 0
	}
	c.products[i].Stock = next
	return c.products[i], clamped, nil
}

func (c *Catalog) Delete(id string, refs References) error {
	i, ok := c.index[id]
	if !ok {
		return apperr.NotFound("product", id)
	}
	if refs != nil && refs.References(id) {
		return apperr.Conflict("product %s is part of a recorded sale", c.products[i].Name)
	}

	c.products = append(c.products[:i], c.products[i+1:]...)
	c.reindex()
	return nil
}

func (c *Catalog) FindByID(id string) (Product, bool) {
	i, ok := c.index[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// FindByName matches case-insensitively on the trimmed name.
func (c *Catalog) FindByName(name string) (Product, bool) {
	name = strings.TrimSpace(name)
	for _, p := range c.products {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Catalog) List() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Name)
	}
	return out
}

func (c *Catalog) Len() int { return len(c.products) }

// Load replaces the whole catalog with persisted products. Nothing is
// replaced when a record is invalid or an id repeats.
func (c *Catalog) Load(products []Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.ID == "" {
			return fmt.Errorf("product #%d: %w", i, apperr.Validation("id is missing"))
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("product %s: %w", p.ID, apperr.Validation("duplicate id"))
		}
		seen[p.ID] = struct{}{}

		in := Input{Name: p.Name, CostPrice: p.CostPrice, SellingPrice: p.SellingPrice, Stock: p.Stock}
		if err := in.Validate(); err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}
	}

	c.products = make([]Product, len(products))
	copy(c.products, products)
	c.reindex()
	return nil
}

// AddQuantity adds two unit counts, saturating at the int range instead of
// wrapping.
func AddQuantity(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

func (c *Catalog) reindex() {
	c.index = make(map[string]int, len(c.products))
	for i, p := range c.products {
		c.index[p.ID] = i
	}
}
