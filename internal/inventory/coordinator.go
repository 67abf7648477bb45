// Package inventory is the single entry point for changing the catalog and
// the ledger. Every mutation goes through the Coordinator, which keeps stock
// and sales history consistent and flushes both aggregates afterwards.
package inventory

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"MiniPOS/internal/apperr"
	"MiniPOS/internal/blobstore"
	"MiniPOS/internal/catalog"
	"MiniPOS/internal/ledger"
	"MiniPOS/internal/orderai"
)

// CartLine is one requested (product, quantity) pair of a sale being
// committed. Repeated product ids are merged.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type Options struct {
	Store       blobstore.Store
	Interpreter orderai.Interpreter
	Log         *zap.Logger
	Metrics     *Metrics

	// Catalog and Ledger default to empty aggregates.
	Catalog *catalog.Catalog
	Ledger  *ledger.Ledger
}

type Coordinator struct {
	mu sync.RWMutex

	catalog *catalog.Catalog
	ledger  *ledger.Ledger

	store   blobstore.Store
	ai      orderai.Interpreter
	log     *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

func New(o Options) *Coordinator {
	c := &Coordinator{
		catalog: o.Catalog,
		ledger:  o.Ledger,
		store:   o.Store,
		ai:      o.Interpreter,
		log:     o.Log,
		metrics: o.Metrics,
		tracer:  otel.Tracer("MiniPOS/inventory"),
	}
	if c.catalog == nil {
		c.catalog = catalog.New()
	}
	if c.ledger == nil {
		c.ledger = ledger.New()
	}
	if c.store == nil {
		c.store = blobstore.NewMemStore()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

func (c *Coordinator) AddProduct(ctx context.Context, in catalog.Input) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.catalog.Add(in)
	if err != nil {
		return catalog.Product{}, err
	}

	c.log.Info("product added", zap.String("product_id", p.ID), zap.String("name", p.Name), zap.Int("stock", p.Stock))
	return p, c.flush(ctx, "add_product")
}

func (c *Coordinator) EditProduct(ctx context.Context, id string, in catalog.Input) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.catalog.Edit(id, in)
	if err != nil {
		return catalog.Product{}, err
	}

	c.log.Info("product edited", zap.String("product_id", p.ID), zap.Int("stock", p.Stock))
	return p, c.flush(ctx, "edit_product")
}

// AdjustStock applies a manual stock correction.
func (c *Coordinator) AdjustStock(ctx context.Context, id string, delta int) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, err := c.adjust(id, delta)
	if err != nil {
		return catalog.Product{}, err
	}
	return p, c.flush(ctx, "adjust_stock")
}

// RemoveProduct deletes a product that no sale refers to.
func (c *Coordinator) RemoveProduct(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.catalog.Delete(id, c.ledger); err != nil {
		return err
	}

	c.log.Info("product removed", zap.String("product_id", id))
	return c.flush(ctx, "remove_product")
}

// CommitSale validates the whole cart against current stock and, only if every
// line fits, records the sale and takes the quantities out of stock.
func (c *Coordinator) CommitSale(ctx context.Context, lines []CartLine) (ledger.Sale, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged, err := mergeLines(lines)
	if err != nil {
		return ledger.Sale{}, err
	}

	items := make([]ledger.LineItem, 0, len(merged))
	for _, l := range merged {
		p, ok := c.catalog.FindByID(l.ProductID)
		if !ok {
			return ledger.Sale{}, apperr.NotFound("product", l.ProductID)
		}
		if l.Quantity > p.Stock {
			return ledger.Sale{}, &apperr.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: l.Quantity,
				Available: p.Stock,
			}
		}
		items = append(items, ledger.LineItem{
			ProductID: p.ID,
			Quantity:  l.Quantity,
			UnitPrice: p.SellingPrice,
		})
	}

	sale, err := c.ledger.RecordSale(items, c.catalog)
	if err != nil {
		return ledger.Sale{}, err
	}
	for _, it := range sale.Items {
		if _, err := c.adjust(it.ProductID, -it.Quantity); err != nil {
			c.log.Error("stock decrement failed after sale", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}

	c.metrics.saleCommitted()
	c.log.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.Int("lines", len(sale.Items)),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("profit", sale.Profit.StringFixed(2)),
	)
	return sale, c.flush(ctx, "commit_sale")
}

// VoidSale removes a sale and puts its quantities back into stock.
func (c *Coordinator) VoidSale(ctx context.Context, id string) (ledger.Sale, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sale, err := c.ledger.ReverseSale(id)
	if err != nil {
		return ledger.Sale{}, err
	}
	for _, it := range sale.Items {
		if _, err := c.adjust(it.ProductID, it.Quantity); err != nil {
			c.log.Warn("stock restore skipped", zap.String("sale_id", sale.ID), zap.String("product_id", it.ProductID), zap.Error(err))
		}
	}

	c.metrics.saleVoided()
	c.log.Info("sale voided", zap.String("sale_id", sale.ID), zap.Int("lines", len(sale.Items)))
	return sale, c.flush(ctx, "void_sale")
}

// ClearSales empties the ledger to start a new accounting period. Stock is
// not touched.
func (c *Coordinator) ClearSales(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.ledger.ClearAll()
	c.log.Info("ledger cleared", zap.Int("sales", n))
	return n, c.flush(ctx, "clear_sales")
}

// adjust wraps Catalog.AdjustStock and reports the clamp. A clamp means some
// earlier check let more units out than were on hand.
func (c *Coordinator) adjust(id string, delta int) (catalog.Product, error) {
	p, clamped, err := c.catalog.AdjustStock(id, delta)
	if err != nil {
		return catalog.Product{}, err
	}
	if clamped > 0 {
		c.metrics.stockClamped(clamped)
		c.log.Warn("stock clamped at zero",
			zap.String("product_id", id),
			zap.Int("delta", delta),
			zap.Int("clamped_units", clamped),
		)
	}
	return p, nil
}

func mergeLines(lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	out := make([]CartLine, 0, len(lines))
	pos := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, apperr.Validation("product_id is required")
		}
		if l.Quantity <= 0 {
			return nil, apperr.Validation("quantity for %s must be positive", l.ProductID)
		}
		if i, ok := pos[l.ProductID]; ok {
			// Saturates, so an absurd total still fails the stock check.
			out[i].Quantity = catalog.AddQuantity(out[i].Quantity, l.Quantity)
			continue
		}
		pos[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func (c *Coordinator) Products() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog.List()
}

func (c *Coordinator) Product(id string) (catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.catalog.FindByID(id)
	if !ok {
		return catalog.Product{}, apperr.NotFound("product", id)
	}
	return p, nil
}

func (c *Coordinator) Sales() []ledger.Sale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.List()
}

func (c *Coordinator) SalesOn(date time.Time) []ledger.Sale {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.SalesOnDate(date)
}

func (c *Coordinator) Sale(id string) (ledger.Sale, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.ledger.FindByID(id)
	if !ok {
		return ledger.Sale{}, apperr.NotFound("sale", id)
	}
	return s, nil
}

// Summary totals the sales of the calendar day containing date.
func (c *Coordinator) Summary(date time.Time) ledger.Summary {
	return ledger.Summarize(c.SalesOn(date))
}

// Snapshot returns a consistent copy of both aggregates, e.g. for export.
func (c *Coordinator) Snapshot() ([]catalog.Product, []ledger.Sale) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalog.List(), c.ledger.List()
}

func (c *Coordinator) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
