package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"MiniPOS/internal/apperr"
)

type ImportResult struct {
	Cart     []CartItem `json:"cart"`
	Added    int        `json:"added"`
	Ignored  int        `json:"ignored"`
	Warnings []string   `json:"warnings"`
}

// DraftCart rebuilds a cart from plain lines against the live catalog. Lines
// that no longer fit are left out with a warning.
func (c *Coordinator) DraftCart(lines []CartLine) (*Cart, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cart := &Cart{}
	warnings := make([]string, 0)
	for _, l := range lines {
		p, ok := c.catalog.FindByID(l.ProductID)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("product %s no longer exists", l.ProductID))
			continue
		}
		if err := cart.Add(p, l.Quantity); err != nil {
			warnings = append(warnings, cartWarning(err, p.Name, p.Stock))
		}
	}
	return cart, warnings
}

// ImportOrder asks the interpreter to read a free-text order and merges the
// result into cart. The interpreter output is re-checked line by line: names
// without an exact (case-insensitive) catalog match are ignored, and lines
// that would exceed stock are skipped with a warning. Nothing is committed and
// a failing interpreter leaves cart untouched.
func (c *Coordinator) ImportOrder(ctx context.Context, text string, cart *Cart) (ImportResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ImportResult{}, apperr.Validation("order text is empty")
	}
	if c.ai == nil {
		return ImportResult{}, apperr.External("order interpreter", errors.New("not configured"))
	}
	if cart == nil {
		cart = &Cart{}
	}

	c.mu.RLock()
	names := c.catalog.Names()
	c.mu.RUnlock()

	lines, err := c.ai.Interpret(ctx, text, names)
	if err != nil {
		c.log.Warn("order interpretation failed", zap.Error(err))
		return ImportResult{}, err
	}

	res := ImportResult{Warnings: make([]string, 0)}

	c.mu.RLock()
	for _, l := range lines {
		p, ok := c.catalog.FindByName(l.ProductName)
		if !ok {
			res.Ignored++
			c.metrics.importLine(importIgnored)
			continue
		}
		if err := cart.Add(p, l.Quantity); err != nil {
			res.Warnings = append(res.Warnings, cartWarning(err, p.Name, p.Stock))
			c.metrics.importLine(importSkipped)
			continue
		}
		res.Added++
		c.metrics.importLine(importAdded)
	}
	c.mu.RUnlock()

	res.Cart = cart.Items()
	c.log.Info("order imported",
		zap.Int("lines", len(lines)),
		zap.Int("added", res.Added),
		zap.Int("ignored", res.Ignored),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res, nil
}

func cartWarning(err error, name string, stock int) string {
	if errors.Is(err, apperr.ErrInsufficientStock) {
		if stock == 0 {
			return fmt.Sprintf("%s is out of stock", name)
		}
		return fmt.Sprintf("not enough stock for %s (stock: %d)", name, stock)
	}
	return fmt.Sprintf("%s skipped: %v", name, err)
}
