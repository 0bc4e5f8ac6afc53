package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/customers"
)

func seedAnalyticsHistory(t *testing.T, env *testEnv) (catalog.Product, catalog.Product, customers.Customer) {
	t.Helper()
	ctx := context.Background()

	super, err := env.catalog.CreateSuperCategory(ctx, catalog.SuperCategoryInput{Name: "Groceries", Icon: "🌾"})
	require.NoError(t, err)
	rice, err := env.catalog.CreateSubCategory(ctx, catalog.SubCategoryInput{Name: "Rice", Icon: "🍚", SuperCategoryID: super.ID})
	require.NoError(t, err)
	pulses, err := env.catalog.CreateSubCategory(ctx, catalog.SubCategoryInput{Name: "Pulses", Icon: "🫘", SuperCategoryID: super.ID})
	require.NoError(t, err)

	basmati, err := env.catalog.CreateProduct(ctx, catalog.ProductInput{Name: "Basmati 5kg", Price: 450, Stock: 100, Unit: "bag", SubCategoryID: rice.ID})
	require.NoError(t, err)
	toorDal, err := env.catalog.CreateProduct(ctx, catalog.ProductInput{Name: "Toor Dal 1kg", Price: 120, Stock: 100, Unit: "pack", SubCategoryID: pulses.ID})
	require.NoError(t, err)

	customer, err := env.customers.Create(ctx, customers.Input{Name: "Asha Traders", Phone: "9876501234"})
	require.NoError(t, err)
	return basmati, toorDal, customer
}

func mustRecord(t *testing.T, env *testEnv, in RecordSaleInput) Sale {
	t.Helper()
	sale, err := env.sales.RecordSale(context.Background(), in)
	require.NoError(t, err)
	return sale
}

func TestAnalyticsAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	basmati, toorDal, customer := seedAnalyticsHistory(t, env)

	jan10 := time.Date(2025, 1, 10, 11, 0, 0, 0, time.UTC).UnixMilli()
	jan20 := time.Date(2025, 1, 20, 15, 30, 0, 0, time.UTC).UnixMilli()
	feb2 := time.Date(2025, 2, 2, 9, 0, 0, 0, time.UTC).UnixMilli()

	mustRecord(t, env, RecordSaleInput{
		EstimateNumber: "EST/20250110/0001", IsCashSale: true, Timestamp: jan10,
		Items:         []LineInput{{ProductID: basmati.ID, Quantity: 2, UnitPrice: 450}},
		PaymentMethod: PaymentCash, Subtotal: 900, Total: 900,
	})
	mustRecord(t, env, RecordSaleInput{
		EstimateNumber: "EST/20250120/0002", CustomerID: customer.ID, Timestamp: jan20,
		Items: []LineInput{
			{ProductID: basmati.ID, Quantity: 1, UnitPrice: 450},
			{ProductID: toorDal.ID, Quantity: 5, UnitPrice: 120},
		},
		PaymentMethod: PaymentCredit, Subtotal: 1050, Total: 1050,
	})
	mustRecord(t, env, RecordSaleInput{
		EstimateNumber: "EST/20250202/0003", CustomerID: customer.ID, Timestamp: feb2,
		Items:         []LineInput{{ProductID: toorDal.ID, Quantity: 2, UnitPrice: 120}},
		PaymentMethod: PaymentUPI, Subtotal: 240, Total: 240,
	})

	got := env.sales.Analytics(ctx, nil)
	assert.Equal(t, 3, got.TotalSales)
	assert.InDelta(t, 2190.0, got.TotalRevenue, 0.001)
	assert.InDelta(t, 730.0, got.AverageOrderValue, 0.001)

	// Top products sorted by revenue: basmati 1350 over toor dal 840.
	require.Len(t, got.TopProducts, 2)
	assert.Equal(t, "Basmati 5kg", got.TopProducts[0].ProductName)
	assert.InDelta(t, 1350.0, got.TopProducts[0].Revenue, 0.001)
	assert.InDelta(t, 3.0, got.TopProducts[0].Quantity, 0.001)
	assert.Equal(t, "Toor Dal 1kg", got.TopProducts[1].ProductName)

	// Cash sale excluded from the customer ranking.
	require.Len(t, got.TopCustomers, 1)
	assert.Equal(t, customer.ID, got.TopCustomers[0].CustomerID)
	assert.Equal(t, 2, got.TopCustomers[0].Orders)
	assert.InDelta(t, 1290.0, got.TopCustomers[0].Revenue, 0.001)

	// Two-level category performance with sub categories nested.
	require.Len(t, got.Categories, 1)
	assert.Equal(t, "Groceries", got.Categories[0].SuperCategoryName)
	assert.InDelta(t, 2190.0, got.Categories[0].Revenue, 0.001)
	require.Len(t, got.Categories[0].SubCategories, 2)
	assert.Equal(t, "Rice", got.Categories[0].SubCategories[0].SubCategoryName)
	assert.Equal(t, "Pulses", got.Categories[0].SubCategories[1].SubCategoryName)

	// Rollups: chronological daily, lexicographic (= chronological) monthly.
	require.Len(t, got.Daily, 3)
	assert.Equal(t, []PeriodStat{
		{Period: "2025-01-10", Count: 1, Revenue: 900},
		{Period: "2025-01-20", Count: 1, Revenue: 1050},
		{Period: "2025-02-02", Count: 1, Revenue: 240},
	}, got.Daily)
	require.Len(t, got.Monthly, 2)
	assert.Equal(t, "2025-01", got.Monthly[0].Period)
	assert.Equal(t, 2, got.Monthly[0].Count)
	assert.InDelta(t, 1950.0, got.Monthly[0].Revenue, 0.001)
	assert.Equal(t, "2025-02", got.Monthly[1].Period)
}

func TestAnalyticsDateRangeInclusive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	basmati, _, _ := seedAnalyticsHistory(t, env)

	jan10 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb2 := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	for _, ts := range []time.Time{jan10, feb2} {
		mustRecord(t, env, RecordSaleInput{
			EstimateNumber: "EST/x", IsCashSale: true, Timestamp: ts.UnixMilli(),
			Items:         []LineInput{{ProductID: basmati.ID, Quantity: 1, UnitPrice: 450}},
			PaymentMethod: PaymentCash, Subtotal: 450, Total: 450,
		})
	}

	got := env.sales.Analytics(ctx, &DateRange{Start: jan10, End: jan10})
	assert.Equal(t, 1, got.TotalSales)
	assert.InDelta(t, 450.0, got.TotalRevenue, 0.001)

	got = env.sales.Analytics(ctx, &DateRange{Start: jan10, End: feb2})
	assert.Equal(t, 2, got.TotalSales)
}

func TestAnalyticsEmptyHistory(t *testing.T) {
	env := newTestEnv(t)
	got := env.sales.Analytics(context.Background(), nil)
	assert.Zero(t, got.TotalSales)
	assert.Zero(t, got.TotalRevenue)
	assert.Zero(t, got.AverageOrderValue)
	assert.Empty(t, got.TopProducts)
	assert.Empty(t, got.Daily)
}
