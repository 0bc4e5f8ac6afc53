package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// Repository provides CRUD over the three catalog collections with the
// cascading delete rules that keep the hierarchy referentially intact.
type Repository struct {
	store *store.Store
}

// NewRepository builds a catalog Repository over the store adapter.
func NewRepository(st *store.Store) *Repository {
	return &Repository{store: st}
}

// Store exposes the underlying adapter for composed multi-key writes.
func (r *Repository) Store() *store.Store { return r.store }

// SuperCategories returns the full current collection.
func (r *Repository) SuperCategories(ctx context.Context) []SuperCategory {
	return store.GetList(ctx, r.store, KeySuperCategories, []SuperCategory{})
}

// SubCategories returns the full current collection.
func (r *Repository) SubCategories(ctx context.Context) []SubCategory {
	return store.GetList(ctx, r.store, KeySubCategories, []SubCategory{})
}

// Products returns the full current collection.
func (r *Repository) Products(ctx context.Context) []Product {
	return store.GetList(ctx, r.store, KeyProducts, []Product{})
}

// GetSuperCategory looks one record up by id.
func (r *Repository) GetSuperCategory(ctx context.Context, id string) (SuperCategory, error) {
	for _, sc := range r.SuperCategories(ctx) {
		if sc.ID == id {
			return sc, nil
		}
	}
	return SuperCategory{}, fmt.Errorf("catalog: super category %s: %w", id, shared.ErrNotFound)
}

// GetSubCategory looks one record up by id.
func (r *Repository) GetSubCategory(ctx context.Context, id string) (SubCategory, error) {
	for _, sc := range r.SubCategories(ctx) {
		if sc.ID == id {
			return sc, nil
		}
	}
	return SubCategory{}, fmt.Errorf("catalog: sub category %s: %w", id, shared.ErrNotFound)
}

// GetProduct looks one record up by id.
func (r *Repository) GetProduct(ctx context.Context, id string) (Product, error) {
	for _, p := range r.Products(ctx) {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("catalog: product %s: %w", id, shared.ErrNotFound)
}

// CreateSuperCategory appends a new record with generated id and timestamps.
func (r *Repository) CreateSuperCategory(ctx context.Context, in SuperCategoryInput) (SuperCategory, error) {
	now := time.Now().UTC()
	sc := SuperCategory{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Icon:      in.Icon,
		Image:     in.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := append(r.SuperCategories(ctx), sc)
	if err := store.SetList(ctx, r.store, KeySuperCategories, items); err != nil {
		return SuperCategory{}, err
	}
	return sc, nil
}

// CreateSubCategory appends a new record. The parent super category must exist.
func (r *Repository) CreateSubCategory(ctx context.Context, in SubCategoryInput) (SubCategory, error) {
	if _, err := r.GetSuperCategory(ctx, in.SuperCategoryID); err != nil {
		return SubCategory{}, err
	}
	now := time.Now().UTC()
	sc := SubCategory{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Icon:            in.Icon,
		Image:           in.Image,
		SuperCategoryID: in.SuperCategoryID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	items := append(r.SubCategories(ctx), sc)
	if err := store.SetList(ctx, r.store, KeySubCategories, items); err != nil {
		return SubCategory{}, err
	}
	return sc, nil
}

// CreateProduct appends a new record. The parent sub category must exist.
func (r *Repository) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if _, err := r.GetSubCategory(ctx, in.SubCategoryID); err != nil {
		return Product{}, err
	}
	now := time.Now().UTC()
	p := Product{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Price:         in.Price,
		Stock:         in.Stock,
		Unit:          in.Unit,
		Image:         in.Image,
		SubCategoryID: in.SubCategoryID,
		HamaliValue:   in.HamaliValue,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	items := append(r.Products(ctx), p)
	if err := store.SetList(ctx, r.store, KeyProducts, items); err != nil {
		return Product{}, err
	}
	return p, nil
}

// UpdateSuperCategory merges non-nil patch fields into the record.
func (r *Repository) UpdateSuperCategory(ctx context.Context, id string, patch SuperCategoryPatch) (SuperCategory, error) {
	items := r.SuperCategories(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if patch.Name != nil {
			items[i].Name = *patch.Name
		}
		if patch.Icon != nil {
			items[i].Icon = *patch.Icon
		}
		if patch.Image != nil {
			items[i].Image = *patch.Image
		}
		items[i].UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, r.store, KeySuperCategories, items); err != nil {
			return SuperCategory{}, err
		}
		return items[i], nil
	}
	return SuperCategory{}, fmt.Errorf("catalog: super category %s: %w", id, shared.ErrNotFound)
}

// UpdateSubCategory merges non-nil patch fields into the record.
func (r *Repository) UpdateSubCategory(ctx context.Context, id string, patch SubCategoryPatch) (SubCategory, error) {
	items := r.SubCategories(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if patch.Name != nil {
			items[i].Name = *patch.Name
		}
		if patch.Icon != nil {
			items[i].Icon = *patch.Icon
		}
		if patch.Image != nil {
			items[i].Image = *patch.Image
		}
		if patch.SuperCategoryID != nil {
			if _, err := r.GetSuperCategory(ctx, *patch.SuperCategoryID); err != nil {
				return SubCategory{}, err
			}
			items[i].SuperCategoryID = *patch.SuperCategoryID
		}
		items[i].UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, r.store, KeySubCategories, items); err != nil {
			return SubCategory{}, err
		}
		return items[i], nil
	}
	return SubCategory{}, fmt.Errorf("catalog: sub category %s: %w", id, shared.ErrNotFound)
}

// UpdateProduct merges non-nil patch fields into the record.
func (r *Repository) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (Product, error) {
	items := r.Products(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if patch.Name != nil {
			items[i].Name = *patch.Name
		}
		if patch.Price != nil {
			items[i].Price = *patch.Price
		}
		if patch.Stock != nil {
			items[i].Stock = *patch.Stock
		}
		if patch.Unit != nil {
			items[i].Unit = *patch.Unit
		}
		if patch.Image != nil {
			items[i].Image = *patch.Image
		}
		if patch.SubCategoryID != nil {
			if _, err := r.GetSubCategory(ctx, *patch.SubCategoryID); err != nil {
				return Product{}, err
			}
			items[i].SubCategoryID = *patch.SubCategoryID
		}
		if patch.HamaliValue != nil {
			items[i].HamaliValue = *patch.HamaliValue
		}
		items[i].UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, r.store, KeyProducts, items); err != nil {
			return Product{}, err
		}
		return items[i], nil
	}
	return Product{}, fmt.Errorf("catalog: product %s: %w", id, shared.ErrNotFound)
}

// DeleteSuperCategory removes the record, every sub category under it and,
// transitively, every product under those sub categories. All three
// collections are written as one unit so no orphan is ever persisted.
func (r *Repository) DeleteSuperCategory(ctx context.Context, id string) (bool, error) {
	supers := r.SuperCategories(ctx)
	kept := supers[:0:0]
	removed := false
	for _, sc := range supers {
		if sc.ID == id {
			removed = true
			continue
		}
		kept = append(kept, sc)
	}
	if !removed {
		return false, nil
	}

	doomedSubs := map[string]bool{}
	keptSubs := []SubCategory{}
	for _, sub := range r.SubCategories(ctx) {
		if sub.SuperCategoryID == id {
			doomedSubs[sub.ID] = true
			continue
		}
		keptSubs = append(keptSubs, sub)
	}
	keptProducts := []Product{}
	for _, p := range r.Products(ctx) {
		if doomedSubs[p.SubCategoryID] {
			continue
		}
		keptProducts = append(keptProducts, p)
	}

	payload, err := marshalCatalog(kept, keptSubs, keptProducts)
	if err != nil {
		return false, err
	}
	if err := r.store.SetManyRaw(ctx, payload); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteSubCategory removes the record and every product referencing it.
func (r *Repository) DeleteSubCategory(ctx context.Context, id string) (bool, error) {
	subs := r.SubCategories(ctx)
	kept := subs[:0:0]
	removed := false
	for _, sub := range subs {
		if sub.ID == id {
			removed = true
			continue
		}
		kept = append(kept, sub)
	}
	if !removed {
		return false, nil
	}
	keptProducts := []Product{}
	for _, p := range r.Products(ctx) {
		if p.SubCategoryID == id {
			continue
		}
		keptProducts = append(keptProducts, p)
	}

	subsPayload, err := store.MarshalList(kept)
	if err != nil {
		return false, err
	}
	productsPayload, err := store.MarshalList(keptProducts)
	if err != nil {
		return false, err
	}
	if err := r.store.SetManyRaw(ctx, map[string]string{
		KeySubCategories: subsPayload,
		KeyProducts:      productsPayload,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteProduct removes one product. No cascade.
func (r *Repository) DeleteProduct(ctx context.Context, id string) (bool, error) {
	products := r.Products(ctx)
	kept := products[:0:0]
	removed := false
	for _, p := range products {
		if p.ID == id {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return false, nil
	}
	if err := store.SetList(ctx, r.store, KeyProducts, kept); err != nil {
		return false, err
	}
	return true, nil
}

// SearchProducts filters by case-insensitive substring over name and unit.
func (r *Repository) SearchProducts(ctx context.Context, query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.Products(ctx)
	}
	var matched []Product
	for _, p := range r.Products(ctx) {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Unit), q) {
			matched = append(matched, p)
		}
	}
	return matched
}

func marshalCatalog(supers []SuperCategory, subs []SubCategory, products []Product) (map[string]string, error) {
	supersPayload, err := store.MarshalList(supers)
	if err != nil {
		return nil, err
	}
	subsPayload, err := store.MarshalList(subs)
	if err != nil {
		return nil, err
	}
	productsPayload, err := store.MarshalList(products)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		KeySuperCategories: supersPayload,
		KeySubCategories:   subsPayload,
		KeyProducts:        productsPayload,
	}, nil
}
