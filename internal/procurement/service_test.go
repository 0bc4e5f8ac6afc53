package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/inventory"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

type testEnv struct {
	catalog *catalog.Repository
	ledger  *inventory.Service
	svc     *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.New(client, slog.Default(), store.Config{})
	cat := catalog.NewRepository(st)
	ledger := inventory.NewService(st, cat, slog.Default(), inventory.ServiceConfig{})
	return &testEnv{
		catalog: cat,
		ledger:  ledger,
		svc:     NewService(st, cat, ledger, slog.Default()),
	}
}

func (e *testEnv) seed(t *testing.T) (Supplier, catalog.Product) {
	t.Helper()
	ctx := context.Background()
	super, err := e.catalog.CreateSuperCategory(ctx, catalog.SuperCategoryInput{Name: "Groceries", Icon: "🌾"})
	require.NoError(t, err)
	sub, err := e.catalog.CreateSubCategory(ctx, catalog.SubCategoryInput{Name: "Rice", Icon: "🍚", SuperCategoryID: super.ID})
	require.NoError(t, err)
	product, err := e.catalog.CreateProduct(ctx, catalog.ProductInput{
		Name: "Basmati 5kg", Price: 450, Stock: 10, Unit: "bag", SubCategoryID: sub.ID,
	})
	require.NoError(t, err)
	supplier, err := e.svc.CreateSupplier(ctx, SupplierInput{Name: "Godavari Mills", Phone: "9000012345"})
	require.NoError(t, err)
	return supplier, product
}

func TestPONumberFormatAndSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.NextPONumber(ctx)
	require.NoError(t, err)
	second, err := env.svc.NextPONumber(ctx)
	require.NoError(t, err)

	today := time.Now().Format("20060102")
	assert.Equal(t, fmt.Sprintf("PO/%s/0001", today), first)
	assert.Equal(t, fmt.Sprintf("PO/%s/0002", today), second)
}

func TestCreateOrderSnapshotsAndTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier, product := env.seed(t)

	po, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID: supplier.ID,
		Items:      []OrderLineInput{{ProductID: product.ID, Quantity: 20, UnitPrice: 400}},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, po.Status)
	assert.Equal(t, "Godavari Mills", po.SupplierName)
	require.Len(t, po.Items, 1)
	assert.Equal(t, 8000.0, po.Items[0].LineTotal)
	assert.Equal(t, 8000.0, po.Total)

	_, err = env.svc.CreateOrder(ctx, CreateOrderInput{SupplierID: supplier.ID})
	require.ErrorIs(t, err, ErrEmptyOrder)

	_, err = env.svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID: "ghost",
		Items:      []OrderLineInput{{ProductID: product.ID, Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceiveOrderMovesStockAndLedgers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier, product := env.seed(t)

	po, err := env.svc.CreateOrder(ctx, CreateOrderInput{
		SupplierID: supplier.ID,
		Items:      []OrderLineInput{{ProductID: product.ID, Quantity: 20, UnitPrice: 400}},
	})
	require.NoError(t, err)

	ordered, err := env.svc.MarkOrdered(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOrdered, ordered.Status)

	received, err := env.svc.ReceiveOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, received.Status)

	got, err := env.catalog.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.Stock)

	txs := env.ledger.Transactions(ctx)
	require.Len(t, txs, 1)
	assert.Equal(t, inventory.TypePurchase, txs[0].Type)
	assert.Equal(t, 20.0, txs[0].Quantity)
	assert.Equal(t, po.PONumber, txs[0].Reference)

	_, err = env.svc.ReceiveOrder(ctx, po.ID)
	require.ErrorIs(t, err, shared.ErrAlreadyReceived)
}

func TestSupplierCRUDAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	supplier, _ := env.seed(t)

	phone := "9000099999"
	updated, err := env.svc.UpdateSupplier(ctx, supplier.ID, SupplierPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)

	assert.Len(t, env.svc.SearchSuppliers(ctx, "godavari"), 1)
	assert.Empty(t, env.svc.SearchSuppliers(ctx, "nope"))

	removed, err := env.svc.DeleteSupplier(ctx, supplier.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, env.svc.Suppliers(ctx))
}

func TestValidateSupplier(t *testing.T) {
	msgs := ValidateSupplier(SupplierInput{Email: "bad"})
	assert.Contains(t, msgs, "name is required")
	assert.Contains(t, msgs, "phone is required")
	assert.Contains(t, msgs, "email must be a valid email address")
	assert.Empty(t, ValidateSupplier(SupplierInput{Name: "Mills", Phone: "9"}))
}
