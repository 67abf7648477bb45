package inventory

import (
	"github.com/shopspring/decimal"

	"MiniPOS/internal/apperr"
	"MiniPOS/internal/catalog"
)

// CartItem is a draft sale line with the product details the operator sees
// while building the cart.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// Cart is a local, unconfirmed draft. Its stock checks only give early
// feedback; CommitSale validates everything again.
type Cart struct {
	items []CartItem
}

// Add puts qty units of p into the cart, merging with an existing line.
// It refuses when the resulting quantity would exceed p's stock.
func (c *Cart) Add(p catalog.Product, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity for %s must be positive", p.Name)
	}

	for i := range c.items {
		if c.items[i].ProductID != p.ID {
			continue
		}
		cur := c.items[i].Quantity
		if qty > p.Stock-cur {
			return &apperr.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: catalog.AddQuantity(cur, qty),
				Available: p.Stock,
			}
		}
		c.items[i].Quantity = cur + qty
		c.items[i].Stock = p.Stock
		return nil
	}

	if qty > p.Stock {
		return &apperr.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.Stock}
	}
	c.items = append(c.items, CartItem{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		Price:     p.SellingPrice,
		Stock:     p.Stock,
	})
	return nil
}

// Remove takes one unit of the product out, dropping the line at zero.
func (c *Cart) Remove(productID string) {
	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		if c.items[i].Quantity > 1 {
			c.items[i].Quantity--
			return
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		return
	}
}

func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (c *Cart) Len() int { return len(c.items) }

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
