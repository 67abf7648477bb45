package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"MiniPOS/internal/apperr"
	"MiniPOS/internal/blobstore"
	"MiniPOS/internal/catalog"
	"MiniPOS/internal/inventory"
	"MiniPOS/internal/ledger"
	"MiniPOS/internal/orderai"
)

type fakeInterpreter struct {
	lines []orderai.OrderLine
	err   error

	gotText  string
	gotNames []string
}

func (f *fakeInterpreter) Interpret(_ context.Context, text string, names []string) ([]orderai.OrderLine, error) {
	f.gotText = text
	f.gotNames = names
	return f.lines, f.err
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCoordinator(t *testing.T, ai orderai.Interpreter) (*inventory.Coordinator, *blobstore.MemStore, *inventory.Metrics) {
	t.Helper()

	store := blobstore.NewMemStore()
	m := inventory.NewMetrics(prometheus.NewRegistry())
	c := inventory.New(inventory.Options{Store: store, Interpreter: ai, Metrics: m})
	return c, store, m
}

func addProduct(t *testing.T, c *inventory.Coordinator, name, cost, price string, stock int) catalog.Product {
	t.Helper()

	p, err := c.AddProduct(context.Background(), catalog.Input{
		Name:         name,
		CostPrice:    dec(cost),
		SellingPrice: dec(price),
		Stock:        stock,
	})
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, c *inventory.Coordinator, id string) int {
	t.Helper()
	p, err := c.Product(id)
	require.NoError(t, err)
	return p.Stock
}

func TestCommitSale_DecrementsStockAndRecordsTotals(t *testing.T) {
	c, _, m := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	require.Equal(t, 3, stockOf(t, c, a.ID))
	require.True(t, sale.Total.Equal(dec("20")))
	require.True(t, sale.Profit.Equal(dec("8")))
	require.Len(t, c.Sales(), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.SalesCommitted))
}

func TestVoidSale_RestoresStock(t *testing.T) {
	c, _, m := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	voided, err := c.VoidSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, sale.ID, voided.ID)

	require.Equal(t, 5, stockOf(t, c, a.ID))
	require.Empty(t, c.Sales())
	require.Equal(t, 1.0, testutil.ToFloat64(m.SalesVoided))

	_, err = c.VoidSale(context.Background(), sale.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVoidSale_RestoresIndependentOfCurrentStock(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 4}})
	require.NoError(t, err)

	_, err = c.EditProduct(context.Background(), a.ID, catalog.Input{Name: "A", CostPrice: dec("6"), SellingPrice: dec("10"), Stock: 20})
	require.NoError(t, err)

	_, err = c.VoidSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, 24, stockOf(t, c, a.ID))
}

func TestRemoveProduct_BlockedWhileReferenced(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	require.ErrorIs(t, c.RemoveProduct(context.Background(), a.ID), apperr.ErrConflict)

	_, err = c.VoidSale(context.Background(), sale.ID)
	require.NoError(t, err)

	require.NoError(t, c.RemoveProduct(context.Background(), a.ID))
	_, err = c.Product(a.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCommitSale_IsAllOrNothing(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)
	b := addProduct(t, c, "B", "1", "2", 1)

	_, err := c.CommitSale(context.Background(), []inventory.CartLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 2},
	})

	var ise *apperr.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, "B", ise.Name)
	require.Equal(t, 2, ise.Requested)
	require.Equal(t, 1, ise.Available)

	require.Equal(t, 5, stockOf(t, c, a.ID))
	require.Equal(t, 1, stockOf(t, c, b.ID))
	require.Empty(t, c.Sales())
}

func TestCommitSale_MergesRepeatedLines(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 3)

	_, err := c.CommitSale(context.Background(), []inventory.CartLine{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: a.ID, Quantity: 2},
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: a.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	require.Equal(t, 3, sale.Items[0].Quantity)
	require.Equal(t, 0, stockOf(t, c, a.ID))
}

func TestCommitSale_RejectsBadCarts(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 0)

	_, err := c.CommitSale(context.Background(), nil)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 0}})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: "ghost", Quantity: 1}})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 1}})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
}

func TestCommitSale_SnapshotsPrices(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = c.EditProduct(context.Background(), a.ID, catalog.Input{Name: "A", CostPrice: dec("1"), SellingPrice: dec("99"), Stock: 4})
	require.NoError(t, err)

	got, err := c.Sale(sale.ID)
	require.NoError(t, err)
	require.True(t, got.Total.Equal(dec("10")))
	require.True(t, got.Profit.Equal(dec("4")))
}

func TestAdjustStock_ClampsAndCounts(t *testing.T) {
	c, _, m := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 2)

	p, err := c.AdjustStock(context.Background(), a.ID, -5)
	require.NoError(t, err)
	require.Equal(t, 0, p.Stock)
	require.Equal(t, 3.0, testutil.ToFloat64(m.StockClamped))

	_, err = c.AdjustStock(context.Background(), "ghost", 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestClearSales_KeepsCatalog(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)
	_, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 1}})
	require.NoError(t, err)

	n, err := c.ClearSales(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, c.Sales())
	require.Equal(t, 4, stockOf(t, c, a.ID))

	require.NoError(t, c.RemoveProduct(context.Background(), a.ID))
}

func TestSummary_CountsOnlyThatDay(t *testing.T) {
	day := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	l := ledger.New().WithClock(func() time.Time { return day })
	c := inventory.New(inventory.Options{Ledger: l})
	a := addProduct(t, c, "A", "6", "10", 5)

	_, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	sum := c.Summary(day)
	require.Equal(t, 1, sum.Count)
	require.True(t, sum.Revenue.Equal(dec("20")))
	require.True(t, sum.Profit.Equal(dec("8")))

	require.Zero(t, c.Summary(day.AddDate(0, 0, 1)).Count)
}

func TestViews_TolerateMissingProducts(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	views := c.Views([]ledger.Sale{{
		ID:    "s1",
		Items: []ledger.LineItem{{ProductID: "gone", Quantity: 2, UnitPrice: dec("3")}},
		Total: dec("6"),
	}})

	require.Len(t, views, 1)
	require.Equal(t, inventory.DeletedProductName, views[0].Lines[0].Name)
	require.True(t, views[0].Lines[0].Missing)
	require.True(t, views[0].Lines[0].Subtotal.Equal(dec("6")))
	require.Equal(t, "(deleted) (x2)", views[0].Summary)
}

func TestPersistence_RoundTripsThroughStore(t *testing.T) {
	c, store, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)
	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.NoError(t, err)

	raw, ok, err := store.Get(context.Background(), inventory.KeySales)
	require.NoError(t, err)
	require.True(t, ok)
	var persisted []ledger.Sale
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.Len(t, persisted, 1)

	reloaded := inventory.New(inventory.Options{Store: store})
	require.NoError(t, reloaded.Load(context.Background()))

	require.Equal(t, 3, stockOf(t, reloaded, a.ID))
	got, err := reloaded.Sale(sale.ID)
	require.NoError(t, err)
	require.True(t, got.Total.Equal(dec("20")))
	require.True(t, got.Date.Equal(sale.Date))
}

func TestLoad_EmptyStoreAndCorruptBlob(t *testing.T) {
	store := blobstore.NewMemStore()
	c := inventory.New(inventory.Options{Store: store})
	require.NoError(t, c.Load(context.Background()))
	require.Empty(t, c.Products())

	require.NoError(t, store.Put(context.Background(), inventory.KeyProducts, []byte("{not json")))
	require.Error(t, c.Load(context.Background()))
}

func TestFlushFailure_KeepsMemoryAuthoritative(t *testing.T) {
	c, store, m := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	store.SetFailPut(errors.New("disk full"))
	sale, err := c.CommitSale(context.Background(), []inventory.CartLine{{ProductID: a.ID, Quantity: 2}})
	require.ErrorIs(t, err, inventory.ErrNotPersisted)
	require.NotEmpty(t, sale.ID)

	require.Equal(t, 3, stockOf(t, c, a.ID))
	require.Len(t, c.Sales(), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))

	store.SetFailPut(nil)
	_, err = c.AdjustStock(context.Background(), a.ID, 1)
	require.NoError(t, err)

	reloaded := inventory.New(inventory.Options{Store: store})
	require.NoError(t, reloaded.Load(context.Background()))
	require.Len(t, reloaded.Sales(), 1)
	require.Equal(t, 4, stockOf(t, reloaded, a.ID))
}

func TestVoidThenRecommit_RestoresStock(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := inventory.New(inventory.Options{})
		ctx := context.Background()

		n := rapid.IntRange(1, 4).Draw(rt, "products")
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			p, err := c.AddProduct(ctx, catalog.Input{
				Name:         "P",
				CostPrice:    dec("1"),
				SellingPrice: dec("2"),
				Stock:        rapid.IntRange(1, 50).Draw(rt, "stock"),
			})
			if err != nil {
				rt.Fatalf("add: %v", err)
			}
			ids = append(ids, p.ID)
		}

		lines := make([]inventory.CartLine, 0, n)
		for _, id := range ids {
			p, _ := c.Product(id)
			lines = append(lines, inventory.CartLine{ProductID: id, Quantity: rapid.IntRange(1, p.Stock).Draw(rt, "qty")})
		}

		sale, err := c.CommitSale(ctx, lines)
		if err != nil {
			rt.Fatalf("commit: %v", err)
		}
		before := stockMap(c)

		if _, err := c.VoidSale(ctx, sale.ID); err != nil {
			rt.Fatalf("void: %v", err)
		}
		if _, err := c.CommitSale(ctx, lines); err != nil {
			rt.Fatalf("recommit: %v", err)
		}

		after := stockMap(c)
		for id, s := range before {
			if after[id] != s {
				rt.Fatalf("stock for %s: before=%d after=%d", id, s, after[id])
			}
		}
	})
}

func TestCommitSale_FailureLeavesStateUntouched(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := inventory.New(inventory.Options{})
		ctx := context.Background()

		stock := rapid.IntRange(0, 10).Draw(rt, "stock")
		p, err := c.AddProduct(ctx, catalog.Input{Name: "P", CostPrice: dec("1"), SellingPrice: dec("2"), Stock: stock})
		if err != nil {
			rt.Fatalf("add: %v", err)
		}
		other, _ := c.AddProduct(ctx, catalog.Input{Name: "Q", CostPrice: dec("1"), SellingPrice: dec("2"), Stock: 100})

		over := stock + rapid.IntRange(1, 10).Draw(rt, "over")
		_, err = c.CommitSale(ctx, []inventory.CartLine{
			{ProductID: other.ID, Quantity: 1},
			{ProductID: p.ID, Quantity: over},
		})
		if !errors.Is(err, apperr.ErrInsufficientStock) {
			rt.Fatalf("want insufficient stock, got %v", err)
		}

		if got, _ := c.Product(p.ID); got.Stock != stock {
			rt.Fatalf("stock changed: %d -> %d", stock, got.Stock)
		}
		if got, _ := c.Product(other.ID); got.Stock != 100 {
			rt.Fatalf("other stock changed: %d", got.Stock)
		}
		if len(c.Sales()) != 0 {
			rt.Fatalf("sale recorded on failure")
		}
	})
}

func stockMap(c *inventory.Coordinator) map[string]int {
	out := map[string]int{}
	for _, p := range c.Products() {
		out[p.ID] = p.Stock
	}
	return out
}

func TestCommitSale_HugeRepeatedLinesDoNotWrap(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	_, err := c.CommitSale(context.Background(), []inventory.CartLine{
		{ProductID: a.ID, Quantity: math.MaxInt},
		{ProductID: a.ID, Quantity: math.MaxInt},
		{ProductID: a.ID, Quantity: 3},
	})

	var ise *apperr.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, math.MaxInt, ise.Requested)
	require.Equal(t, 5, ise.Available)
	require.Equal(t, 5, stockOf(t, c, a.ID))
	require.Empty(t, c.Sales())
}

func TestAdjustStock_HugeDeltaSaturates(t *testing.T) {
	c, _, _ := newCoordinator(t, nil)
	a := addProduct(t, c, "A", "6", "10", 5)

	p, err := c.AdjustStock(context.Background(), a.ID, math.MaxInt)
	require.NoError(t, err)
	require.Equal(t, math.MaxInt, p.Stock)
}

func TestCommitSale_SucceedsOnlyWhenEveryProductFits(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		c := inventory.New(inventory.Options{})
		ctx := context.Background()

		n := rapid.IntRange(1, 3).Draw(rt, "products")
		ids := make([]string, 0, n)
		stock := map[string]int{}
		for i := 0; i < n; i++ {
			s := rapid.IntRange(0, 20).Draw(rt, "stock")
			p, err := c.AddProduct(ctx, catalog.Input{Name: fmt.Sprintf("P%d", i), CostPrice: dec("1"), SellingPrice: dec("2"), Stock: s})
			if err != nil {
				rt.Fatalf("add: %v", err)
			}
			ids = append(ids, p.ID)
			stock[p.ID] = s
		}

		qty := rapid.OneOf(
			rapid.IntRange(1, 10),
			rapid.IntRange(math.MaxInt-10, math.MaxInt),
		)
		lines := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) inventory.CartLine {
			return inventory.CartLine{
				ProductID: rapid.SampledFrom(ids).Draw(t, "product"),
				Quantity:  qty.Draw(t, "qty"),
			}
		}), 1, 6).Draw(rt, "lines")

		want := map[string]*big.Int{}
		for _, l := range lines {
			if want[l.ProductID] == nil {
				want[l.ProductID] = new(big.Int)
			}
			want[l.ProductID].Add(want[l.ProductID], big.NewInt(int64(l.Quantity)))
		}
		fits := true
		for id, total := range want {
			if total.Cmp(big.NewInt(int64(stock[id]))) > 0 {
				fits = false
			}
		}

		sale, err := c.CommitSale(ctx, lines)
		if fits != (err == nil) {
			rt.Fatalf("fits=%v err=%v", fits, err)
		}

		for _, id := range ids {
			got, _ := c.Product(id)
			expect := stock[id]
			if fits && want[id] != nil {
				expect -= int(want[id].Int64())
			}
			if got.Stock != expect {
				rt.Fatalf("stock for %s: got %d want %d", id, got.Stock, expect)
			}
		}
		if fits && len(sale.Items) != len(want) {
			rt.Fatalf("sale has %d lines for %d products", len(sale.Items), len(want))
		}
		if !fits && len(c.Sales()) != 0 {
			rt.Fatalf("sale recorded although a line did not fit")
		}
	})
}

func TestLoad_RejectsInvalidRecords(t *testing.T) {
	store := blobstore.NewMemStore()
	ctx := context.Background()

	c := inventory.New(inventory.Options{Store: store})
	a := addProduct(t, c, "A", "6", "10", 5)

	require.NoError(t, store.Put(ctx, inventory.KeySales, []byte(`[{"id":"s1","items":[{"product_id":"`+a.ID+`","quantity":0}]}]`)))
	reloaded := inventory.New(inventory.Options{Store: store})
	require.ErrorIs(t, reloaded.Load(ctx), apperr.ErrValidation)
	require.Empty(t, reloaded.Products())

	require.NoError(t, store.Put(ctx, inventory.KeySales, []byte(`[]`)))
	require.NoError(t, store.Put(ctx, inventory.KeyProducts, []byte(`[{"id":"p1","name":"A","stock":-1},{"id":"p1","name":"B"}]`)))
	require.ErrorIs(t, reloaded.Load(ctx), apperr.ErrValidation)
}
