package catalog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRepository(store.New(client, slog.Default(), store.Config{}))
}

func seedHierarchy(t *testing.T, repo *Repository) (SuperCategory, SubCategory, Product) {
	t.Helper()
	ctx := context.Background()
	super, err := repo.CreateSuperCategory(ctx, SuperCategoryInput{Name: "Groceries", Icon: "🌾"})
	require.NoError(t, err)
	sub, err := repo.CreateSubCategory(ctx, SubCategoryInput{Name: "Rice", Icon: "🍚", SuperCategoryID: super.ID})
	require.NoError(t, err)
	product, err := repo.CreateProduct(ctx, ProductInput{
		Name: "Basmati 5kg", Price: 450, Stock: 10, Unit: "bag",
		SubCategoryID: sub.ID, HamaliValue: 5,
	})
	require.NoError(t, err)
	return super, sub, product
}

func TestCreateStampsIdentityAndTimestamps(t *testing.T) {
	repo := newTestRepo(t)
	super, sub, product := seedHierarchy(t, repo)

	assert.NotEmpty(t, super.ID)
	assert.False(t, super.CreatedAt.IsZero())
	assert.Equal(t, super.CreatedAt, super.UpdatedAt)
	assert.Equal(t, super.ID, sub.SuperCategoryID)
	assert.Equal(t, sub.ID, product.SubCategoryID)
}

func TestCreateChildRequiresParent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateSubCategory(ctx, SubCategoryInput{Name: "Rice", Icon: "🍚", SuperCategoryID: "ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.CreateProduct(ctx, ProductInput{Name: "Basmati", Price: 1, Unit: "bag", SubCategoryID: "ghost"})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMergesPatchAndStampsUpdatedAt(t *testing.T) {
	repo := newTestRepo(t)
	_, _, product := seedHierarchy(t, repo)
	ctx := context.Background()

	price := 475.0
	updated, err := repo.UpdateProduct(ctx, product.ID, ProductPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 475.0, updated.Price)
	assert.Equal(t, product.Name, updated.Name)
	assert.True(t, !updated.UpdatedAt.Before(product.UpdatedAt))
	assert.Equal(t, product.CreatedAt, updated.CreatedAt)

	_, err = repo.UpdateProduct(ctx, "ghost", ProductPatch{Price: &price})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestDeleteSuperCategoryCascades(t *testing.T) {
	repo := newTestRepo(t)
	super, sub, _ := seedHierarchy(t, repo)
	ctx := context.Background()

	// A sibling hierarchy that must survive the cascade.
	otherSuper, err := repo.CreateSuperCategory(ctx, SuperCategoryInput{Name: "Dairy", Icon: "🥛"})
	require.NoError(t, err)
	otherSub, err := repo.CreateSubCategory(ctx, SubCategoryInput{Name: "Milk", Icon: "🍼", SuperCategoryID: otherSuper.ID})
	require.NoError(t, err)
	otherProduct, err := repo.CreateProduct(ctx, ProductInput{Name: "Milk 1L", Price: 30, Stock: 50, Unit: "pack", SubCategoryID: otherSub.ID})
	require.NoError(t, err)

	removed, err := repo.DeleteSuperCategory(ctx, super.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	for _, s := range repo.SubCategories(ctx) {
		assert.NotEqual(t, super.ID, s.SuperCategoryID)
	}
	for _, p := range repo.Products(ctx) {
		assert.NotEqual(t, sub.ID, p.SubCategoryID)
	}
	require.Len(t, repo.SubCategories(ctx), 1)
	require.Len(t, repo.Products(ctx), 1)
	assert.Equal(t, otherProduct.ID, repo.Products(ctx)[0].ID)
}

func TestDeleteSubCategoryCascadesToProducts(t *testing.T) {
	repo := newTestRepo(t)
	super, sub, _ := seedHierarchy(t, repo)
	ctx := context.Background()

	removed, err := repo.DeleteSubCategory(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, repo.Products(ctx))

	// Parent survives.
	_, err = repo.GetSuperCategory(ctx, super.ID)
	require.NoError(t, err)
}

func TestDeleteReportsWhetherAnythingWasRemoved(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	removed, err := repo.DeleteSuperCategory(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = repo.DeleteProduct(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSearchProducts(t *testing.T) {
	repo := newTestRepo(t)
	_, sub, _ := seedHierarchy(t, repo)
	ctx := context.Background()

	_, err := repo.CreateProduct(ctx, ProductInput{Name: "Sona Masoori 10kg", Price: 700, Stock: 4, Unit: "sack", SubCategoryID: sub.ID})
	require.NoError(t, err)

	assert.Len(t, repo.SearchProducts(ctx, "BASMATI"), 1)
	assert.Len(t, repo.SearchProducts(ctx, "sack"), 1)
	assert.Len(t, repo.SearchProducts(ctx, ""), 2)
	assert.Empty(t, repo.SearchProducts(ctx, "wheat"))
}

func TestValidateProduct(t *testing.T) {
	msgs := ValidateProduct(ProductInput{Price: -1, Stock: -2, HamaliValue: -3})
	assert.Contains(t, msgs, "name is required")
	assert.Contains(t, msgs, "unit is required")
	assert.Contains(t, msgs, "sub category id is required")
	assert.Contains(t, msgs, "price must be at least 0")
	assert.Contains(t, msgs, "stock must be at least 0")
	assert.Contains(t, msgs, "hamali value must be at least 0")

	msgs = ValidateProduct(ProductInput{Name: "Basmati", Price: 450, Stock: 10, Unit: "bag", SubCategoryID: "s1", HamaliValue: 5})
	assert.Empty(t, msgs)
}
