package catalog

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"MiniPOS/internal/apperr"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
}

// Input is the set of mutable product fields, shared by add and edit.
type Input struct {
	Name         string          `json:"name"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Stock        int             `json:"stock"`
}

func (in Input) normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	return in
}

func (in Input) Validate() error {
	in = in.normalize()
	switch {
	case in.Name == "":
		return apperr.Validation("name is required")
	case in.CostPrice.IsNegative():
		return apperr.Validation("cost price must not be negative")
	case in.SellingPrice.IsNegative():
		return apperr.Validation("selling price must not be negative")
	case in.Stock < 0:
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

// ParseInput builds an Input from raw form text. Every field is required.
func ParseInput(name, cost, price, stock string) (Input, error) {
	name = strings.TrimSpace(name)
	cost = strings.TrimSpace(cost)
	price = strings.TrimSpace(price)
	stock = strings.TrimSpace(stock)

	if name == "" || cost == "" || price == "" || stock == "" {
		return Input{}, apperr.Validation("all fields are required")
	}

	c, err := decimal.NewFromString(cost)
	if err != nil {
		return Input{}, apperr.Validation("cost price %q is not a number", cost)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Input{}, apperr.Validation("selling price %q is not a number", price)
	}
	s, err := strconv.Atoi(stock)
	if err != nil {
		return Input{}, apperr.Validation("stock %q is not an integer", stock)
	}

	in := Input{Name: name, CostPrice: c, SellingPrice: p, Stock: s}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

func (p Product) apply(in Input) Product {
	p.Name = in.Name
	p.CostPrice = in.CostPrice
	p.SellingPrice = in.SellingPrice
	p.Stock = in.Stock
	return p
}
