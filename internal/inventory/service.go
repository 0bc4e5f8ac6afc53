package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// ErrInvalidType indicates an unknown transaction type.
var ErrInvalidType = errors.New("inventory: invalid transaction type")

// ErrZeroQuantity indicates a movement without quantity.
var ErrZeroQuantity = errors.New("inventory: quantity must be non zero")

// dedupWindow bounds how far apart two otherwise identical transactions may
// have been created and still count as duplicates.
const dedupWindow = time.Second

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// ReorderLevelDefault seeds auto-created items; zero means 10.
	ReorderLevelDefault float64
}

// Service maintains the per-product inventory ledger and keeps it consistent
// with the stock transaction log and the authoritative product catalog.
type Service struct {
	store        *store.Store
	catalog      *catalog.Repository
	logger       *slog.Logger
	reorderLevel float64
}

// NewService builds the ledger service.
func NewService(st *store.Store, cat *catalog.Repository, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	reorder := cfg.ReorderLevelDefault
	if reorder <= 0 {
		reorder = 10
	}
	return &Service{store: st, catalog: cat, logger: logger, reorderLevel: reorder}
}

// Items returns the full derived inventory collection.
func (s *Service) Items(ctx context.Context) []Item {
	return store.GetList(ctx, s.store, KeyItems, []Item{})
}

// Transactions returns the full movement log.
func (s *Service) Transactions(ctx context.Context) []Transaction {
	return store.GetList(ctx, s.store, KeyTransactions, []Transaction{})
}

// AddTransaction applies one movement to the ledger and appends it to the
// log. The item is created on first sight of a product. A sale larger than
// the available closing stock is clamped so the balance never goes negative
// and the recorded quantity matches what was actually applied.
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (Transaction, error) {
	if !in.Type.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if in.Quantity == 0 {
		return Transaction{}, ErrZeroQuantity
	}

	items := s.Items(ctx)
	idx := s.ensureItem(ctx, &items, in.ProductID, in.ProductName)
	item := &items[idx]

	qty := in.Quantity
	if in.Type == TypeSale && math.Abs(qty) > item.ClosingStock {
		qty = item.ClosingStock
	}

	now := time.Now().UTC()
	date := in.Date
	if date == "" {
		date = now.Format("2006-01-02")
	}
	tx := Transaction{
		ID:          uuid.NewString(),
		ProductID:   in.ProductID,
		ProductName: item.ProductName,
		Type:        in.Type,
		Quantity:    qty,
		Date:        date,
		Reference:   in.Reference,
		Notes:       in.Notes,
		CreatedAt:   now,
	}

	applyEffect(item, tx.Type, tx.Quantity, +1)
	item.LastUpdated = now

	log := append(s.Transactions(ctx), tx)
	if err := s.persist(ctx, items, log); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// EditTransaction reverses the stored transaction's effect, applies the new
// values and replaces the record. The two-phase reverse-then-apply keeps the
// ledger consistent; editing a transaction to identical values is a no-op on
// the derived fields.
func (s *Service) EditTransaction(ctx context.Context, id string, in TransactionInput) (Transaction, error) {
	if !in.Type.Valid() {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if in.Quantity == 0 {
		return Transaction{}, ErrZeroQuantity
	}

	log := s.Transactions(ctx)
	txIdx := -1
	for i := range log {
		if log[i].ID == id {
			txIdx = i
			break
		}
	}
	if txIdx < 0 {
		return Transaction{}, fmt.Errorf("inventory: transaction %s: %w", id, shared.ErrNotFound)
	}
	old := log[txIdx]

	items := s.Items(ctx)
	oldIdx := s.ensureItem(ctx, &items, old.ProductID, old.ProductName)
	applyEffect(&items[oldIdx], old.Type, old.Quantity, -1)

	productID := in.ProductID
	if productID == "" {
		productID = old.ProductID
	}
	newIdx := s.ensureItem(ctx, &items, productID, in.ProductName)
	item := &items[newIdx]

	qty := in.Quantity
	if in.Type == TypeSale && math.Abs(qty) > item.ClosingStock {
		qty = item.ClosingStock
	}
	applyEffect(item, in.Type, qty, +1)

	now := time.Now().UTC()
	items[oldIdx].LastUpdated = now
	item.LastUpdated = now

	date := in.Date
	if date == "" {
		date = old.Date
	}
	updated := Transaction{
		ID:          old.ID,
		ProductID:   productID,
		ProductName: item.ProductName,
		Type:        in.Type,
		Quantity:    qty,
		Date:        date,
		Reference:   in.Reference,
		Notes:       in.Notes,
		CreatedAt:   old.CreatedAt,
	}
	log[txIdx] = updated

	if err := s.persist(ctx, items, log); err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// DeleteTransaction reverses the transaction's effect and removes it from
// the log.
func (s *Service) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	log := s.Transactions(ctx)
	kept := log[:0:0]
	var removed *Transaction
	for _, tx := range log {
		if tx.ID == id {
			doomed := tx
			removed = &doomed
			continue
		}
		kept = append(kept, tx)
	}
	if removed == nil {
		return false, nil
	}

	items := s.Items(ctx)
	idx := s.ensureItem(ctx, &items, removed.ProductID, removed.ProductName)
	applyEffect(&items[idx], removed.Type, removed.Quantity, -1)
	items[idx].LastUpdated = time.Now().UTC()

	if err := s.persist(ctx, items, kept); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteItem removes the inventory record and every transaction that
// references its product.
func (s *Service) DeleteItem(ctx context.Context, id string) (bool, error) {
	items := s.Items(ctx)
	kept := items[:0:0]
	productID := ""
	removed := false
	for _, item := range items {
		if item.ID == id {
			removed = true
			productID = item.ProductID
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return false, nil
	}
	log := s.Transactions(ctx)
	keptLog := log[:0:0]
	for _, tx := range log {
		if tx.ProductID == productID {
			continue
		}
		keptLog = append(keptLog, tx)
	}
	if err := s.persist(ctx, kept, keptLog); err != nil {
		return false, err
	}
	return true, nil
}

// LowStock lists items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) []Item {
	var low []Item
	for _, item := range s.Items(ctx) {
		if item.ClosingStock <= item.ReorderLevel {
			low = append(low, item)
		}
	}
	return low
}

// SyncWithCatalog reconciles the ledger against the product catalog: missing
// items are created seeded with the product's current stock, stale category
// snapshots are re-resolved, and closing stock is overwritten from the
// authoritative product quantity. The purchases/sales/adjustments counters
// are informational history and are left untouched. Running the sync twice
// with unchanged inputs performs no further writes.
func (s *Service) SyncWithCatalog(ctx context.Context) (created, updated int, err error) {
	products := s.catalog.Products(ctx)
	subNames := make(map[string]string)
	for _, sub := range s.catalog.SubCategories(ctx) {
		subNames[sub.ID] = sub.Name
	}

	items := s.Items(ctx)
	byProduct := make(map[string]int, len(items))
	for i, item := range items {
		byProduct[item.ProductID] = i
	}

	dirty := false
	now := time.Now().UTC()
	for _, product := range products {
		category := subNames[product.SubCategoryID]
		if category == "" {
			category = UnknownCategory
		}
		idx, ok := byProduct[product.ID]
		if !ok {
			items = append(items, Item{
				ID:           uuid.NewString(),
				ProductID:    product.ID,
				ProductName:  product.Name,
				Category:     category,
				Unit:         product.Unit,
				ClosingStock: product.Stock,
				ReorderLevel: s.reorderLevel,
				LastUpdated:  now,
				Notes:        "Auto-created from catalog sync",
			})
			byProduct[product.ID] = len(items) - 1
			created++
			dirty = true
			continue
		}
		item := &items[idx]
		changed := false
		if item.Category == "" || item.Category == UnknownCategory {
			if category != UnknownCategory && item.Category != category {
				item.Category = category
				changed = true
			}
		}
		if item.ClosingStock != product.Stock {
			item.ClosingStock = product.Stock
			changed = true
		}
		if changed {
			item.LastUpdated = now
			updated++
			dirty = true
		}
	}

	if !dirty {
		return 0, 0, nil
	}
	if err := store.SetList(ctx, s.store, KeyItems, items); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// Deduplicate removes stock transactions that repeat the same product, type,
// quantity and date within the tolerance window, keeping exactly one of each
// cluster, then fully refolds every affected item from its surviving
// transactions.
func (s *Service) Deduplicate(ctx context.Context) (int, error) {
	log := s.Transactions(ctx)
	type anchor struct {
		createdAt time.Time
	}
	lastKept := make(map[string]anchor)
	kept := log[:0:0]
	affected := make(map[string]bool)
	removedOpening := make(map[string]float64)
	removed := 0
	for _, tx := range log {
		key := fmt.Sprintf("%s|%s|%v|%s", tx.ProductID, tx.Type, tx.Quantity, tx.Date)
		if prev, ok := lastKept[key]; ok {
			delta := tx.CreatedAt.Sub(prev.createdAt)
			if delta < 0 {
				delta = -delta
			}
			if delta <= dedupWindow {
				affected[tx.ProductID] = true
				if tx.Type == TypeOpening {
					removedOpening[tx.ProductID] += math.Abs(tx.Quantity)
				}
				removed++
				continue
			}
		}
		lastKept[key] = anchor{createdAt: tx.CreatedAt}
		kept = append(kept, tx)
	}
	if removed == 0 {
		return 0, nil
	}

	items := s.Items(ctx)
	now := time.Now().UTC()
	for i := range items {
		if !affected[items[i].ProductID] {
			continue
		}
		// A removed duplicate opening was folded into the base when it was
		// applied; back it out before reseeding from OpeningStock.
		items[i].OpeningStock -= removedOpening[items[i].ProductID]
		refold(&items[i], kept)
		items[i].LastUpdated = now
	}
	if err := s.persist(ctx, items, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// ensureItem finds the item tracking productID, creating it when absent, and
// returns its index in items.
func (s *Service) ensureItem(ctx context.Context, items *[]Item, productID, productName string) int {
	for i, item := range *items {
		if item.ProductID == productID {
			return i
		}
	}
	name := productName
	category := UnknownCategory
	unit := ""
	if product, err := s.catalog.GetProduct(ctx, productID); err == nil {
		if name == "" {
			name = product.Name
		}
		if sub, err := s.catalog.GetSubCategory(ctx, product.SubCategoryID); err == nil {
			category = sub.Name
		}
		unit = product.Unit
	}
	if name == "" {
		name = UnknownCategory
	}
	*items = append(*items, Item{
		ID:           uuid.NewString(),
		ProductID:    productID,
		ProductName:  name,
		Category:     category,
		Unit:         unit,
		ReorderLevel: s.reorderLevel,
		LastUpdated:  time.Now().UTC(),
	})
	return len(*items) - 1
}

func (s *Service) persist(ctx context.Context, items []Item, log []Transaction) error {
	itemsPayload, err := store.MarshalList(items)
	if err != nil {
		return err
	}
	logPayload, err := store.MarshalList(log)
	if err != nil {
		return err
	}
	return s.store.SetManyRaw(ctx, map[string]string{
		KeyItems:        itemsPayload,
		KeyTransactions: logPayload,
	})
}

// applyEffect folds one transaction into the derived item. sign is +1 to
// apply and -1 to reverse.
func applyEffect(item *Item, typ TransactionType, qty float64, sign float64) {
	switch typ {
	case TypeOpening:
		item.OpeningStock += sign * math.Abs(qty)
		item.ClosingStock += sign * math.Abs(qty)
	case TypePurchase:
		item.Purchases += sign * math.Abs(qty)
		item.ClosingStock += sign * math.Abs(qty)
	case TypeSale:
		item.Sales += sign * math.Abs(qty)
		item.ClosingStock -= sign * math.Abs(qty)
	case TypeAdjustment:
		item.Adjustments += sign * qty
		item.ClosingStock += sign * qty
	}
}

// refold recomputes the movement counters of item from its surviving
// transactions, restoring closing = opening + purchases - sales + adjustments.
// OpeningStock is the preserved base, not a recomputed output: it may predate
// the transaction log entirely (restored or imported ledgers), and opening
// transactions were already folded into it when they were applied.
func refold(item *Item, log []Transaction) {
	item.Purchases = 0
	item.Sales = 0
	item.Adjustments = 0
	item.ClosingStock = item.OpeningStock
	for _, tx := range log {
		if tx.ProductID != item.ProductID || tx.Type == TypeOpening {
			continue
		}
		applyEffect(item, tx.Type, tx.Quantity, +1)
	}
}
