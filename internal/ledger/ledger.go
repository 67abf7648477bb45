// Package ledger keeps the record of completed sales.
//
// Sales are append-only; the only removal paths are whole-sale reversal and
// clearing the ledger at the end of an accounting period. A Ledger is not safe
// for concurrent use.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"MiniPOS/internal/apperr"
	"MiniPOS/internal/catalog"
)

// PriceBook is the catalog view the ledger needs to snapshot unit costs.
type PriceBook interface {
	FindByID(id string) (catalog.Product, bool)
}

type Ledger struct {
	sales []Sale
	newID func() string
	now   func() time.Time
}

func New() *Ledger {
	return &Ledger{
		newID: func() string { return "s_" + uuid.NewString() },
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (l *Ledger) WithIDGenerator(fn func() string) *Ledger {
	l.newID = fn
	return l
}

func (l *Ledger) WithClock(fn func() time.Time) *Ledger {
	l.now = fn
	return l
}

// RecordSale appends a sale built from items. Unit prices come from the items;
// unit costs are read from book at this moment and frozen into the sale.
func (l *Ledger) RecordSale(items []LineItem, book PriceBook) (Sale, error) {
	if len(items) == 0 {
		return Sale{}, apperr.Validation("a sale needs at least one item")
	}

	s := Sale{
		ID:     l.newID(),
		Date:   l.now(),
		Items:  make([]LineItem, 0, len(items)),
		Total:  decimal.Zero,
		Profit: decimal.Zero,
	}

	for _, it := range items {
		if it.Quantity <= 0 {
			return Sale{}, apperr.Validation("quantity for %s must be positive", it.ProductID)
		}
		p, ok := book.FindByID(it.ProductID)
		if !ok {
			return Sale{}, apperr.NotFound("product", it.ProductID)
		}
		it.UnitCost = p.CostPrice

		s.Items = append(s.Items, it)
		s.Total = s.Total.Add(it.Revenue())
		s.Profit = s.Profit.Add(it.Profit())
	}

	l.sales = append(l.sales, s)
	return s.clone(), nil
}

// ReverseSale removes the sale and returns it so the caller can restore stock.
func (l *Ledger) ReverseSale(id string) (Sale, error) {
	for i, s := range l.sales {
		if s.ID != id {
			continue
		}
		l.sales = append(l.sales[:i], l.sales[i+1:]...)
		return s, nil
	}
	return Sale{}, apperr.NotFound("sale", id)
}

// ClearAll empties the ledger and returns how many sales were dropped.
func (l *Ledger) ClearAll() int {
	n := len(l.sales)
	l.sales = nil
	return n
}

func (l *Ledger) FindByID(id string) (Sale, bool) {
	for _, s := range l.sales {
		if s.ID == id {
			return s.clone(), true
		}
	}
	return Sale{}, false
}

func (l *Ledger) List() []Sale {
	out := make([]Sale, 0, len(l.sales))
	for _, s := range l.sales {
		out = append(out, s.clone())
	}
	return out
}

// SalesOnDate returns the sales whose timestamp falls on the same calendar
// day as date, evaluated in date's location.
func (l *Ledger) SalesOnDate(date time.Time) []Sale {
	y, m, d := date.Date()
	out := make([]Sale, 0)
	for _, s := range l.sales {
		sy, sm, sd := s.Date.In(date.Location()).Date()
		if sy == y && sm == m && sd == d {
			out = append(out, s.clone())
		}
	}
	return out
}

func (l *Ledger) References(productID string) bool {
	for _, s := range l.sales {
		for _, it := range s.Items {
			if it.ProductID == productID {
				return true
			}
		}
	}
	return false
}

func (l *Ledger) Len() int { return len(l.sales) }

// CheckSales reports the first persisted sale that could not have been
// recorded: a missing or repeated id, no lines, or a line without a product
// or with a quantity below one.
func CheckSales(sales []Sale) error {
	seen := make(map[string]struct{}, len(sales))
	for i, s := range sales {
		if s.ID == "" {
			return fmt.Errorf("sale #%d: %w", i, apperr.Validation("id is missing"))
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("sale %s: %w", s.ID, apperr.Validation("duplicate id"))
		}
		seen[s.ID] = struct{}{}

		if len(s.Items) == 0 {
			return fmt.Errorf("sale %s: %w", s.ID, apperr.Validation("no items"))
		}
		for _, it := range s.Items {
			if it.ProductID == "" {
				return fmt.Errorf("sale %s: %w", s.ID, apperr.Validation("item without product id"))
			}
			if it.Quantity <= 0 {
				return fmt.Errorf("sale %s: %w", s.ID, apperr.Validation("quantity for %s must be positive", it.ProductID))
			}
		}
	}
	return nil
}

// Load replaces the ledger contents with persisted sales. Nothing is replaced
// when CheckSales fails.
func (l *Ledger) Load(sales []Sale) error {
	if err := CheckSales(sales); err != nil {
		return err
	}

	l.sales = make([]Sale, 0, len(sales))
	for _, s := range sales {
		l.sales = append(l.sales, s.clone())
	}
	return nil
}
