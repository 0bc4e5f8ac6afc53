package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// Suppliers returns the full supplier collection.
func (s *Service) Suppliers(ctx context.Context) []Supplier {
	return store.GetList(ctx, s.store, KeySuppliers, []Supplier{})
}

// GetSupplier looks one record up by id.
func (s *Service) GetSupplier(ctx context.Context, id string) (Supplier, error) {
	for _, sup := range s.Suppliers(ctx) {
		if sup.ID == id {
			return sup, nil
		}
	}
	return Supplier{}, fmt.Errorf("procurement: supplier %s: %w", id, shared.ErrNotFound)
}

// CreateSupplier appends a new record with generated id and timestamps.
func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (Supplier, error) {
	now := time.Now().UTC()
	sup := Supplier{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := append(s.Suppliers(ctx), sup)
	if err := store.SetList(ctx, s.store, KeySuppliers, items); err != nil {
		return Supplier{}, err
	}
	return sup, nil
}

// UpdateSupplier merges non-nil patch fields into the record.
func (s *Service) UpdateSupplier(ctx context.Context, id string, patch SupplierPatch) (Supplier, error) {
	items := s.Suppliers(ctx)
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if patch.Name != nil {
			items[i].Name = *patch.Name
		}
		if patch.Email != nil {
			items[i].Email = *patch.Email
		}
		if patch.Phone != nil {
			items[i].Phone = *patch.Phone
		}
		if patch.Address != nil {
			items[i].Address = *patch.Address
		}
		items[i].UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, s.store, KeySuppliers, items); err != nil {
			return Supplier{}, err
		}
		return items[i], nil
	}
	return Supplier{}, fmt.Errorf("procurement: supplier %s: %w", id, shared.ErrNotFound)
}

// DeleteSupplier removes one record. Existing purchase orders keep their
// supplier name snapshot.
func (s *Service) DeleteSupplier(ctx context.Context, id string) (bool, error) {
	items := s.Suppliers(ctx)
	kept := items[:0:0]
	removed := false
	for _, sup := range items {
		if sup.ID == id {
			removed = true
			continue
		}
		kept = append(kept, sup)
	}
	if !removed {
		return false, nil
	}
	if err := store.SetList(ctx, s.store, KeySuppliers, kept); err != nil {
		return false, err
	}
	return true, nil
}

// SearchSuppliers filters by case-insensitive substring over name, email
// and phone.
func (s *Service) SearchSuppliers(ctx context.Context, query string) []Supplier {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.Suppliers(ctx)
	}
	var matched []Supplier
	for _, sup := range s.Suppliers(ctx) {
		if strings.Contains(strings.ToLower(sup.Name), q) ||
			strings.Contains(strings.ToLower(sup.Email), q) ||
			strings.Contains(strings.ToLower(sup.Phone), q) {
			matched = append(matched, sup)
		}
	}
	return matched
}

// ValidateSupplier reports human-readable validation failures for in.
func ValidateSupplier(in SupplierInput) []string {
	return shared.ValidateStruct(in)
}
