package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"MiniPOS/internal/catalog"
	"MiniPOS/internal/ledger"
)

const (
	KeyProducts = "products"
	KeySales    = "sales"

	flushTimeout = 5 * time.Second
)

// ErrNotPersisted accompanies a mutation that was applied in memory but could
// not be written to the blob store. The in-memory state stays authoritative.
var ErrNotPersisted = errors.New("changes applied but not saved")

// Load replaces the in-memory aggregates with the persisted ones. Missing keys
// load as empty. A blob that cannot be decoded, or holds a record that could
// never have been written, is an error so that the next flush does not
// overwrite it. Either both aggregates are replaced or neither is.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var products []catalog.Product
	if err := c.loadBlob(ctx, KeyProducts, &products); err != nil {
		return err
	}
	var sales []ledger.Sale
	if err := c.loadBlob(ctx, KeySales, &sales); err != nil {
		return err
	}

	if err := ledger.CheckSales(sales); err != nil {
		return fmt.Errorf("decode %s: %w", KeySales, err)
	}
	if err := c.catalog.Load(products); err != nil {
		return fmt.Errorf("decode %s: %w", KeyProducts, err)
	}
	if err := c.ledger.Load(sales); err != nil {
		return fmt.Errorf("decode %s: %w", KeySales, err)
	}

	c.log.Info("inventory loaded",
		zap.Int("products", len(products)),
		zap.Int("sales", len(sales)),
	)
	return nil
}

func (c *Coordinator) loadBlob(ctx context.Context, key string, v any) error {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// flush writes both aggregates. Callers hold c.mu. The request context only
// contributes values; a client going away does not abort the write.
func (c *Coordinator) flush(ctx context.Context, op string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "inventory.flush",
		trace.WithAttributes(
			attribute.String("inventory.op", op),
			attribute.Int("catalog.products", c.catalog.Len()),
			attribute.Int("ledger.sales", c.ledger.Len()),
		),
	)
	defer span.End()

	err := errors.Join(
		c.putBlob(ctx, KeyProducts, c.catalog.List()),
		c.putBlob(ctx, KeySales, c.ledger.List()),
	)
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "flush failed")
	c.metrics.persistFailed()
	c.log.Error("flush failed; in-memory state kept", zap.String("op", op), zap.Error(err))

	return fmt.Errorf("%w: %v", ErrNotPersisted, err)
}

func (c *Coordinator) putBlob(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
