package inventory

import (
	"time"
)

// Storage keys for the ledger collections.
const (
	KeyItems        = "inventory_items"
	KeyTransactions = "stock_transactions"
)

// UnknownCategory is the fallback when a product can no longer be resolved
// against the live catalog.
const UnknownCategory = "Unknown"

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TypeOpening seeds the opening balance.
	TypeOpening TransactionType = "opening"
	// TypePurchase is inbound stock (godown entry).
	TypePurchase TransactionType = "purchase"
	// TypeSale is outbound stock.
	TypeSale TransactionType = "sale"
	// TypeAdjustment is a signed manual correction.
	TypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeOpening, TypePurchase, TypeSale, TypeAdjustment:
		return true
	}
	return false
}

// Item is the derived per-product inventory record. ClosingStock must equal
// OpeningStock + Purchases - Sales + Adjustments; divergence is a bug signal
// handled by the reconciliation routines.
type Item struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	Category     string    `json:"category"`
	Unit         string    `json:"unit"`
	OpeningStock float64   `json:"openingStock"`
	Purchases    float64   `json:"purchases"`
	Sales        float64   `json:"sales"`
	Adjustments  float64   `json:"adjustments"`
	ClosingStock float64   `json:"closingStock"`
	ReorderLevel float64   `json:"reorderLevel"`
	LastUpdated  time.Time `json:"lastUpdated"`
	Notes        string    `json:"notes,omitempty"`
}

// Transaction is one entry of the append-only stock movement log.
type Transaction struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Type        TransactionType `json:"type"`
	Quantity    float64         `json:"quantity"`
	Date        string          `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// TransactionInput describes a movement to apply.
type TransactionInput struct {
	ProductID string
	// ProductName is optional; when empty it is resolved from the catalog,
	// falling back to the transaction log or UnknownCategory.
	ProductName string
	Type        TransactionType
	Quantity    float64
	// Date in YYYY-MM-DD form; defaults to today.
	Date      string
	Reference string
	Notes     string
}
