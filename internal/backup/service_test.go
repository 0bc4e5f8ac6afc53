package backup

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/customers"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/sales"
	"github.com/tillworks/tillworks/internal/shared"
)

type testEnv struct {
	store     *store.Store
	catalog   *catalog.Repository
	customers *customers.Repository
	backup    *Service
}

func newTestEnv(t *testing.T, limit int) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	st := store.New(client, slog.Default(), store.Config{})
	return &testEnv{
		store:     st,
		catalog:   catalog.NewRepository(st),
		customers: customers.NewRepository(st),
		backup:    NewService(st, slog.Default(), limit),
	}
}

func seedCatalog(t *testing.T, env *testEnv) catalog.Product {
	t.Helper()
	ctx := context.Background()
	super, err := env.catalog.CreateSuperCategory(ctx, catalog.SuperCategoryInput{Name: "Groceries", Icon: "🌾"})
	require.NoError(t, err)
	sub, err := env.catalog.CreateSubCategory(ctx, catalog.SubCategoryInput{Name: "Rice", Icon: "🍚", SuperCategoryID: super.ID})
	require.NoError(t, err)
	product, err := env.catalog.CreateProduct(ctx, catalog.ProductInput{
		Name: "Basmati 5kg", SubCategoryID: sub.ID, Price: 450, Stock: 10, Unit: "bag",
	})
	require.NoError(t, err)
	return product
}

func TestExportImportJSONRoundTrip(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	product := seedCatalog(t, env)
	_, err := env.customers.Create(ctx, customers.Input{Name: "Asha Traders", Phone: "9876501234"})
	require.NoError(t, err)

	payload, err := env.backup.ExportSelected(ctx, DefaultTypeKeys, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, payload, `"products"`)
	assert.Contains(t, payload, "Basmati 5kg")

	for _, key := range DefaultTypeKeys {
		require.NoError(t, env.store.Remove(ctx, key))
	}
	require.NoError(t, env.backup.ImportSelected(ctx, payload, DefaultTypeKeys, FormatJSON))

	products := env.catalog.Products(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, product.ID, products[0].ID)
	assert.Equal(t, "Basmati 5kg", products[0].Name)
	assert.Equal(t, 450.0, products[0].Price)

	all := env.customers.List(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "Asha Traders", all[0].Name)
}

func TestExportCSVSections(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	seedCatalog(t, env)

	payload, err := env.backup.ExportSelected(ctx, []string{catalog.KeyProducts}, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, payload, "=== PRODUCTS ===")
	assert.Contains(t, payload, "Basmati 5kg")
	assert.Contains(t, payload, "bag")

	// Header comes from the stored field order, not alphabetical.
	lines := strings.Split(strings.TrimSpace(payload), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	header := lines[1]
	assert.True(t, strings.HasPrefix(header, "id,name,"), "header %q", header)
}

func TestImportCSVKeepsCellsAsStrings(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	payload := "\n\n=== CUSTOMERS ===\nid,name,phone\nc1,Asha Traders,9876501234\nc2,\"Mehta, Sons\",9876500000\n"
	require.NoError(t, env.backup.ImportSelected(ctx, payload, []string{customers.KeyCustomers}, FormatCSV))

	raw, ok, err := env.store.GetRaw(ctx, customers.KeyCustomers)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"phone":"9876501234"`)
	assert.Contains(t, raw, "Mehta, Sons")
}

func TestImportCSVRestoresTypedFields(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	product := seedCatalog(t, env)

	payload, err := env.backup.ExportSelected(ctx, []string{catalog.KeyProducts}, FormatCSV)
	require.NoError(t, err)
	require.NoError(t, env.store.Remove(ctx, catalog.KeyProducts))
	require.NoError(t, env.backup.ImportSelected(ctx, payload, []string{catalog.KeyProducts}, FormatCSV))

	// The rebuilt collection must survive a typed repository read, not just
	// sit in storage until one destroys it.
	products := env.catalog.Products(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, product.ID, products[0].ID)
	assert.Equal(t, 450.0, products[0].Price)
	assert.Equal(t, 10.0, products[0].Stock)
	assert.Equal(t, "bag", products[0].Unit)

	// And a second read still sees it.
	products = env.catalog.Products(ctx)
	require.Len(t, products, 1)
}

func TestImportCSVSaleRoundTrip(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	product := seedCatalog(t, env)
	svc := sales.NewService(env.store, env.catalog, env.customers, slog.Default())

	recorded, err := svc.RecordSale(ctx, sales.RecordSaleInput{
		EstimateNumber: "EST/20250301/0001",
		IsCashSale:     true,
		Items:          []sales.LineInput{{ProductID: product.ID, Quantity: 3, UnitPrice: 450}},
		PaymentMethod:  sales.PaymentCash,
		Subtotal:       1350,
		Total:          1350,
	})
	require.NoError(t, err)

	payload, err := env.backup.ExportSelected(ctx, []string{sales.KeySales}, FormatCSV)
	require.NoError(t, err)
	require.NoError(t, env.store.Remove(ctx, sales.KeySales))
	require.NoError(t, env.backup.ImportSelected(ctx, payload, []string{sales.KeySales}, FormatCSV))

	history := svc.List(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, recorded.ID, history[0].ID)
	assert.Equal(t, recorded.Timestamp, history[0].Timestamp)
	assert.Equal(t, 1350.0, history[0].Total)
	assert.True(t, history[0].IsCashSale)
	require.Len(t, history[0].Items, 1)
	assert.Equal(t, "Basmati 5kg", history[0].Items[0].ProductName)
	assert.Equal(t, 1350.0, history[0].Items[0].LineTotal)
}

func TestBackupRotation(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()
	seedCatalog(t, env)

	var ids []string
	for i := 0; i < 3; i++ {
		meta, err := env.backup.CreateBackup(ctx, nil)
		require.NoError(t, err)
		ids = append(ids, meta.ID)
		time.Sleep(2 * time.Millisecond)
	}

	index := env.backup.ListBackups(ctx)
	require.Len(t, index, 2)
	assert.Equal(t, ids[2], index[0].ID)
	assert.Equal(t, ids[1], index[1].ID)

	// The evicted blob is gone; retained blobs are intact.
	_, ok, err := env.store.GetRaw(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = env.store.GetRaw(ctx, ids[2])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestoreBackup(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	product := seedCatalog(t, env)

	meta, err := env.backup.CreateBackup(ctx, nil)
	require.NoError(t, err)

	// Mutate after the snapshot, then restore.
	deleted, err := env.catalog.DeleteProduct(ctx, product.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	require.NoError(t, env.backup.RestoreBackup(ctx, meta.ID))
	products := env.catalog.Products(ctx)
	require.Len(t, products, 1)
	assert.Equal(t, product.ID, products[0].ID)

	require.ErrorIs(t, env.backup.RestoreBackup(ctx, "backup_0"), shared.ErrNotFound)
}

func TestDeleteBackup(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	seedCatalog(t, env)

	meta, err := env.backup.CreateBackup(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, env.backup.DeleteBackup(ctx, meta.ID))

	index := env.backup.ListBackups(ctx)
	assert.Empty(t, index)
	_, ok, err := env.store.GetRaw(ctx, meta.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.ErrorIs(t, env.backup.DeleteBackup(ctx, meta.ID), shared.ErrNotFound)
}
