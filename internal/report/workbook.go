// Package report projects the catalog and the ledger into an xlsx workbook
// for the end-of-day export.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"MiniPOS/internal/catalog"
	"MiniPOS/internal/ledger"
)

const (
	InventorySheet = "Inventory"
	SalesSheet     = "Sales"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	missingProduct = "N/A"
)

var (
	inventoryHeader = []any{"ID", "Name", "Cost", "Price", "Stock"}
	salesHeader     = []any{"Sale ID", "Date", "Items", "Total", "Profit"}
)

// FileName is the download name for an export produced at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("report_%s.xlsx", now.Format("2006-01-02"))
}

// ItemsSummary renders sale lines as "Name (xN), ...". Lines whose product no
// longer exists use a placeholder name.
func ItemsSummary(items []ledger.LineItem, lookup func(id string) (catalog.Product, bool)) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		name := missingProduct
		if p, ok := lookup(it.ProductID); ok {
			name = p.Name
		}
		parts = append(parts, fmt.Sprintf("%s (x%d)", name, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

// Build assembles the workbook. Sale dates are rendered in loc.
func Build(products []catalog.Product, sales []ledger.Sale, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}

	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lookup := func(id string) (catalog.Product, bool) {
		p, ok := byID[id]
		return p, ok
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), InventorySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SalesSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	inv := make([][]any, 0, len(products)+1)
	inv = append(inv, inventoryHeader)
	for _, p := range products {
		inv = append(inv, []any{
			p.ID,
			p.Name,
			p.CostPrice.InexactFloat64(),
			p.SellingPrice.InexactFloat64(),
			p.Stock,
		})
	}

	rows := make([][]any, 0, len(sales)+1)
	rows = append(rows, salesHeader)
	for _, s := range sales {
		rows = append(rows, []any{
			s.ID,
			s.Date.In(loc).Format("2006-01-02 15:04:05"),
			ItemsSummary(s.Items, lookup),
			s.Total.InexactFloat64(),
			s.Profit.InexactFloat64(),
		})
	}

	if err := writeRows(f, InventorySheet, inv); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeRows(f, SalesSheet, rows); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, products []catalog.Product, sales []ledger.Sale, loc *time.Location) error {
	f, err := Build(products, sales, loc)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
