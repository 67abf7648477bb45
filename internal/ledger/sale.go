package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem references a product by id only. The product may have been edited
// or even removed since; price and cost are the values at sale time.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

func (it LineItem) Revenue() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it LineItem) Profit() decimal.Decimal {
	return it.UnitPrice.Sub(it.UnitCost).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Sale struct {
	ID     string          `json:"id"`
	Date   time.Time       `json:"date"`
	Items  []LineItem      `json:"items"`
	Total  decimal.Decimal `json:"total"`
	Profit decimal.Decimal `json:"profit"`
}

func (s Sale) clone() Sale {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	s.Items = items
	return s
}

type Summary struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
	Profit  decimal.Decimal `json:"profit"`
}

func Summarize(sales []Sale) Summary {
	sum := Summary{Revenue: decimal.Zero, Profit: decimal.Zero}
	for _, s := range sales {
		sum.Count++
		sum.Revenue = sum.Revenue.Add(s.Total)
		sum.Profit = sum.Profit.Add(s.Profit)
	}
	return sum
}
