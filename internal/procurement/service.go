package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/inventory"
	"github.com/tillworks/tillworks/internal/platform/store"
	"github.com/tillworks/tillworks/internal/shared"
)

// ErrEmptyOrder indicates a purchase order with no lines.
var ErrEmptyOrder = errors.New("procurement: at least one order line required")

// Service manages suppliers and purchase orders. Receiving an order feeds
// the inventory ledger and the product catalog.
type Service struct {
	store   *store.Store
	catalog *catalog.Repository
	ledger  *inventory.Service
	logger  *slog.Logger
}

// NewService wires the procurement service over its collaborators.
func NewService(st *store.Store, cat *catalog.Repository, ledger *inventory.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, catalog: cat, ledger: ledger, logger: logger}
}

// Orders returns the full purchase order collection.
func (s *Service) Orders(ctx context.Context) []PurchaseOrder {
	return store.GetList(ctx, s.store, KeyPurchaseOrders, []PurchaseOrder{})
}

// GetOrder looks one order up by id.
func (s *Service) GetOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	for _, po := range s.Orders(ctx) {
		if po.ID == id {
			return po, nil
		}
	}
	return PurchaseOrder{}, fmt.Errorf("procurement: order %s: %w", id, shared.ErrNotFound)
}

// NextPONumber issues the next sequential purchase order reference in the
// form PO/YYYYMMDD/NNNN. Same counter mechanics and multi-context caveat as
// estimate numbers.
func (s *Service) NextPONumber(ctx context.Context) (string, error) {
	n := s.store.GetInt(ctx, KeyPOCounter, 0) + 1
	if err := s.store.SetInt(ctx, KeyPOCounter, n); err != nil {
		return "", err
	}
	return fmt.Sprintf("PO/%s/%04d", time.Now().Format("20060102"), n), nil
}

// CreateOrder opens a draft purchase order, snapshotting the supplier and
// product names. Every referenced product must exist at creation time.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (PurchaseOrder, error) {
	if len(in.Items) == 0 {
		return PurchaseOrder{}, ErrEmptyOrder
	}
	supplier, err := s.GetSupplier(ctx, in.SupplierID)
	if err != nil {
		return PurchaseOrder{}, err
	}

	lines := make([]OrderLine, 0, len(in.Items))
	total := 0.0
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("procurement: quantity must be positive for product %s", line.ProductID)
		}
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return PurchaseOrder{}, err
		}
		lineTotal := line.Quantity * line.UnitPrice
		total += lineTotal
		lines = append(lines, OrderLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	number, err := s.NextPONumber(ctx)
	if err != nil {
		return PurchaseOrder{}, err
	}
	now := time.Now().UTC()
	po := PurchaseOrder{
		ID:           uuid.NewString(),
		PONumber:     number,
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		Items:        lines,
		Status:       StatusDraft,
		Total:        total,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	orders := append(s.Orders(ctx), po)
	if err := store.SetList(ctx, s.store, KeyPurchaseOrders, orders); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// MarkOrdered moves a draft order to the ordered state.
func (s *Service) MarkOrdered(ctx context.Context, id string) (PurchaseOrder, error) {
	return s.setStatus(ctx, id, StatusOrdered)
}

// ReceiveOrder books the goods in: each line increments the product's stock
// and records a purchase transaction in the inventory ledger, then the order
// is stamped received. An order can only be received once.
func (s *Service) ReceiveOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	orders := s.Orders(ctx)
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		if orders[i].Status == StatusReceived {
			return PurchaseOrder{}, fmt.Errorf("procurement: order %s: %w", id, shared.ErrAlreadyReceived)
		}

		products := s.catalog.Products(ctx)
		productIdx := make(map[string]int, len(products))
		for j, p := range products {
			productIdx[p.ID] = j
		}
		now := time.Now().UTC()
		for _, line := range orders[i].Items {
			if idx, ok := productIdx[line.ProductID]; ok {
				products[idx].Stock += line.Quantity
				products[idx].UpdatedAt = now
			}
			// Products deleted since ordering are still ledgered.
			if _, err := s.ledger.AddTransaction(ctx, inventory.TransactionInput{
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Type:        inventory.TypePurchase,
				Quantity:    line.Quantity,
				Reference:   orders[i].PONumber,
			}); err != nil {
				return PurchaseOrder{}, err
			}
		}

		orders[i].Status = StatusReceived
		orders[i].UpdatedAt = now

		productsPayload, err := store.MarshalList(products)
		if err != nil {
			return PurchaseOrder{}, err
		}
		ordersPayload, err := store.MarshalList(orders)
		if err != nil {
			return PurchaseOrder{}, err
		}
		if err := s.store.SetManyRaw(ctx, map[string]string{
			catalog.KeyProducts: productsPayload,
			KeyPurchaseOrders:   ordersPayload,
		}); err != nil {
			return PurchaseOrder{}, err
		}
		return orders[i], nil
	}
	return PurchaseOrder{}, fmt.Errorf("procurement: order %s: %w", id, shared.ErrNotFound)
}

func (s *Service) setStatus(ctx context.Context, id string, status OrderStatus) (PurchaseOrder, error) {
	orders := s.Orders(ctx)
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders[i].Status = status
		orders[i].UpdatedAt = time.Now().UTC()
		if err := store.SetList(ctx, s.store, KeyPurchaseOrders, orders); err != nil {
			return PurchaseOrder{}, err
		}
		return orders[i], nil
	}
	return PurchaseOrder{}, fmt.Errorf("procurement: order %s: %w", id, shared.ErrNotFound)
}
