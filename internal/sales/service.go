package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/customers"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// ErrEmptySale indicates a record request with no line items.
var ErrEmptySale = errors.New("sales: at least one line item required")

// ErrInvalidPayment indicates an unknown payment method.
var ErrInvalidPayment = errors.New("sales: invalid payment method")

// Service records sales with full category snapshots, maintains the estimate
// counter and computes analytics over the sale history.
type Service struct {
	store     *store.Store
	catalog   *catalog.Repository
	customers *customers.Repository
	logger    *slog.Logger
}

// NewService wires the sale engine over its collaborating repositories.
func NewService(st *store.Store, cat *catalog.Repository, cust *customers.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, catalog: cat, customers: cust, logger: logger}
}

// List returns the full sale history.
func (s *Service) List(ctx context.Context) []Sale {
	return store.GetList(ctx, s.store, KeySales, []Sale{})
}

// Get looks one sale up by id.
func (s *Service) Get(ctx context.Context, id string) (Sale, error) {
	for _, sale := range s.List(ctx) {
		if sale.ID == id {
			return sale, nil
		}
	}
	return Sale{}, fmt.Errorf("sales: %s: %w", id, shared.ErrNotFound)
}

// NextEstimateNumber issues the next sequential estimate reference in the
// form EST/YYYYMMDD/NNNN. The counter is read, incremented and written back;
// across concurrent contexts the last write wins, matching the storage
// medium's semantics.
func (s *Service) NextEstimateNumber(ctx context.Context) (string, error) {
	n := s.store.GetInt(ctx, KeyEstimateCounter, 0) + 1
	if err := s.store.SetInt(ctx, KeyEstimateCounter, n); err != nil {
		return "", err
	}
	return fmt.Sprintf("EST/%s/%04d", time.Now().Format("20060102"), n), nil
}

// RecordSale materializes a denormalized sale record, decrements product
// stock (floored at zero) and appends the sale. Every referenced product,
// sub category and super category must exist; a missing reference aborts the
// whole sale and nothing is persisted. Stock and sale writes go through one
// logical storage unit.
func (s *Service) RecordSale(ctx context.Context, in RecordSaleInput) (Sale, error) {
	if len(in.Items) == 0 {
		return Sale{}, ErrEmptySale
	}
	if !in.PaymentMethod.Valid() {
		return Sale{}, fmt.Errorf("%w: %q", ErrInvalidPayment, in.PaymentMethod)
	}

	products := s.catalog.Products(ctx)
	productIdx := make(map[string]int, len(products))
	for i, p := range products {
		productIdx[p.ID] = i
	}
	subCats := make(map[string]catalog.SubCategory)
	for _, sc := range s.catalog.SubCategories(ctx) {
		subCats[sc.ID] = sc
	}
	superCats := make(map[string]catalog.SuperCategory)
	for _, sc := range s.catalog.SuperCategories(ctx) {
		superCats[sc.ID] = sc
	}

	// Resolve and validate every line before touching any state.
	items := make([]LineItem, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return Sale{}, fmt.Errorf("sales: quantity must be positive for product %s", line.ProductID)
		}
		idx, ok := productIdx[line.ProductID]
		if !ok {
			return Sale{}, fmt.Errorf("sales: product %s: %w", line.ProductID, shared.ErrNotFound)
		}
		product := products[idx]
		sub, ok := subCats[product.SubCategoryID]
		if !ok {
			return Sale{}, fmt.Errorf("sales: sub category %s: %w", product.SubCategoryID, shared.ErrNotFound)
		}
		super, ok := superCats[sub.SuperCategoryID]
		if !ok {
			return Sale{}, fmt.Errorf("sales: super category %s: %w", sub.SuperCategoryID, shared.ErrNotFound)
		}
		items = append(items, LineItem{
			ProductID:         product.ID,
			ProductName:       product.Name,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			LineTotal:         line.Quantity * line.UnitPrice,
			Unit:              product.Unit,
			SubCategoryID:     sub.ID,
			SubCategoryName:   sub.Name,
			SuperCategoryID:   super.ID,
			SuperCategoryName: super.Name,
		})
	}

	customerName := in.CustomerName
	customerPhone := in.CustomerPhone
	if !in.IsCashSale && in.CustomerID != "" {
		customer, err := s.customers.Get(ctx, in.CustomerID)
		if err != nil {
			return Sale{}, err
		}
		if customerName == "" {
			customerName = customer.Name
		}
		if customerPhone == "" {
			customerPhone = customer.Phone
		}
	}

	ts := in.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	now := time.Now().UTC()
	sale := Sale{
		ID:             uuid.NewString(),
		EstimateNumber: in.EstimateNumber,
		Date:           time.UnixMilli(ts).UTC().Format("2006-01-02"),
		Timestamp:      ts,
		CustomerID:     in.CustomerID,
		CustomerName:   customerName,
		CustomerPhone:  customerPhone,
		IsCashSale:     in.IsCashSale,
		Items:          items,
		Subtotal:       in.Subtotal,
		HamaliCharges:  in.HamaliCharges,
		Total:          in.Total,
		PaymentMethod:  in.PaymentMethod,
		Reference:      in.Reference,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Decrement stock, floored at zero so an oversell never goes negative.
	for _, item := range items {
		idx := productIdx[item.ProductID]
		products[idx].Stock -= item.Quantity
		if products[idx].Stock < 0 {
			products[idx].Stock = 0
		}
		products[idx].UpdatedAt = now
	}

	history := append(s.List(ctx), sale)
	productsPayload, err := store.MarshalList(products)
	if err != nil {
		return Sale{}, err
	}
	salesPayload, err := store.MarshalList(history)
	if err != nil {
		return Sale{}, err
	}
	if err := s.store.SetManyRaw(ctx, map[string]string{
		catalog.KeyProducts: productsPayload,
		KeySales:            salesPayload,
	}); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// EditSale re-derives line totals, subtotal and total after item, quantity
// or price changes. Edited lines keep their original snapshots; product
// stock is not re-adjusted.
func (s *Service) EditSale(ctx context.Context, id string, in EditSaleInput) (Sale, error) {
	history := s.List(ctx)
	for i := range history {
		if history[i].ID != id {
			continue
		}
		sale := &history[i]
		if in.Items != nil {
			byProduct := make(map[string]LineItem, len(sale.Items))
			for _, item := range sale.Items {
				byProduct[item.ProductID] = item
			}
			edited := make([]LineItem, 0, len(in.Items))
			for _, line := range in.Items {
				if line.Quantity <= 0 {
					return Sale{}, fmt.Errorf("sales: quantity must be positive for product %s", line.ProductID)
				}
				item, ok := byProduct[line.ProductID]
				if !ok {
					return Sale{}, fmt.Errorf("sales: product %s not on sale %s: %w", line.ProductID, id, shared.ErrNotFound)
				}
				item.Quantity = line.Quantity
				item.UnitPrice = line.UnitPrice
				item.LineTotal = line.Quantity * line.UnitPrice
				edited = append(edited, item)
			}
			sale.Items = edited
		}
		if in.HamaliCharges != nil {
			sale.HamaliCharges = *in.HamaliCharges
		}
		if in.PaymentMethod != nil {
			if !in.PaymentMethod.Valid() {
				return Sale{}, fmt.Errorf("%w: %q", ErrInvalidPayment, *in.PaymentMethod)
			}
			sale.PaymentMethod = *in.PaymentMethod
		}
		if in.Reference != nil {
			sale.Reference = *in.Reference
		}
		subtotal := 0.0
		for _, item := range sale.Items {
			subtotal += item.LineTotal
		}
		sale.Subtotal = subtotal
		sale.Total = subtotal + sale.HamaliCharges
		sale.UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, s.store, KeySales, history); err != nil {
			return Sale{}, err
		}
		return *sale, nil
	}
	return Sale{}, fmt.Errorf("sales: %s: %w", id, shared.ErrNotFound)
}

// Search filters sales by case-insensitive substring over estimate number,
// customer name and item product names.
func (s *Service) Search(ctx context.Context, query string) []Sale {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return s.List(ctx)
	}
	var matched []Sale
	for _, sale := range s.List(ctx) {
		if strings.Contains(strings.ToLower(sale.EstimateNumber), q) ||
			strings.Contains(strings.ToLower(sale.CustomerName), q) {
			matched = append(matched, sale)
			continue
		}
		for _, item := range sale.Items {
			if strings.Contains(strings.ToLower(item.ProductName), q) {
				matched = append(matched, sale)
				break
			}
		}
	}
	return matched
}
