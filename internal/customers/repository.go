package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// Repository provides CRUD over the customer collection.
type Repository struct {
	store *store.Store
}

// NewRepository builds a customer Repository over the store adapter.
func NewRepository(st *store.Store) *Repository {
	return &Repository{store: st}
}

// List returns the full current collection.
func (r *Repository) List(ctx context.Context) []Customer {
	return store.GetList(ctx, r.store, KeyCustomers, []Customer{})
}

// Get looks one record up by id.
func (r *Repository) Get(ctx context.Context, id string) (Customer, error) {
	for _, c := range r.List(ctx) {
		if c.ID == id {
			return c, nil
		}
	}
	return Customer{}, fmt.Errorf("customers: %s: %w", id, shared.ErrNotFound)
}

// Create appends a new record with generated id and timestamps.
func (r *Repository) Create(ctx context.Context, in Input) (Customer, error) {
	now := time.Now().UTC()
	c := Customer{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
	}
	items := append(r.List(ctx), c)
	if err := store.SetList(ctx, r.store, KeyCustomers, items); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// Update merges non-nil patch fields into the record.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (Customer, error) {
	items := r.List(ctx)
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
		if err := store.SetList(ctx, r.store, KeyCustomers, items); err != nil {
			return Customer{}, err
		}
		return items[i], nil
	}
	return Customer{}, fmt.Errorf("customers: %s: %w", id, shared.ErrNotFound)
}

// Delete removes one record. No cascade.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	items := r.List(ctx)
	kept := items[:0:0]
	removed := false
	for _, c := range items {
		if c.ID == id {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return false, nil
	}
	if err := store.SetList(ctx, r.store, KeyCustomers, kept); err != nil {
		return false, err
	}
	return true, nil
}

// Search filters by case-insensitive substring over name, email and phone.
func (r *Repository) Search(ctx context.Context, query string) []Customer {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.List(ctx)
	}
	var matched []Customer
	for _, c := range r.List(ctx) {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(strings.ToLower(c.Phone), q) {
			matched = append(matched, c)
		}
	}
	return matched
}

// Validate reports human-readable validation failures for in.
func Validate(in Input) []string {
	msgs := shared.ValidateStruct(in)
	if in.Name != "" && strings.TrimSpace(in.Name) == "" {
		msgs = append(msgs, "name is required")
	}
	return msgs
}
