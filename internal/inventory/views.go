package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"MiniPOS/internal/ledger"
)

// DeletedProductName stands in for a line whose product no longer exists.
const DeletedProductName = "(deleted)"

type LineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Missing   bool            `json:"missing,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SaleView struct {
	ID      string          `json:"id"`
	Date    time.Time       `json:"date"`
	Lines   []LineView      `json:"lines"`
	Summary string          `json:"summary"`
	Total   decimal.Decimal `json:"total"`
	Profit  decimal.Decimal `json:"profit"`
}

// Views resolves product names for display. Unknown product ids are not an
// error; they render as DeletedProductName.
func (c *Coordinator) Views(sales []ledger.Sale) []SaleView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SaleView, 0, len(sales))
	for _, s := range sales {
		v := SaleView{
			ID:     s.ID,
			Date:   s.Date,
			Lines:  make([]LineView, 0, len(s.Items)),
			Total:  s.Total,
			Profit: s.Profit,
		}

		parts := make([]string, 0, len(s.Items))
		for _, it := range s.Items {
			lv := LineView{
				ProductID: it.ProductID,
				Name:      DeletedProductName,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Subtotal:  it.Revenue(),
			}
			if p, ok := c.catalog.FindByID(it.ProductID); ok {
				lv.Name = p.Name
			} else {
				lv.Missing = true
			}
			v.Lines = append(v.Lines, lv)
			parts = append(parts, fmt.Sprintf("%s (x%d)", lv.Name, lv.Quantity))
		}
		v.Summary = strings.Join(parts, ", ")
		out = append(out, v)
	}
	return out
}
