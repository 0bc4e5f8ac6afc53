package procurement

import "time"

// Storage keys for the procurement collections.
const (
	KeySuppliers      = "suppliers"
	KeyPurchaseOrders = "purchase_orders"
	KeyPOCounter      = "poCounter"
)

// OrderStatus tracks a purchase order through its lifecycle.
type OrderStatus string

const (
	StatusDraft    OrderStatus = "draft"
	StatusOrdered  OrderStatus = "ordered"
	StatusReceived OrderStatus = "received"
)

// Supplier is a goods source for purchase orders.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SupplierInput carries the caller-supplied fields for create.
type SupplierInput struct {
	Name    string `validate:"required"`
	Email   string `validate:"omitempty,email"`
	Phone   string `validate:"required"`
	Address string
}

// SupplierPatch updates a subset of fields; nil means unchanged.
type SupplierPatch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// OrderLine is one ordered product. The name is snapshotted when the order
// is created.
type OrderLine struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

// PurchaseOrder is a godown inbound document. Receiving it moves stock.
type PurchaseOrder struct {
	ID           string      `json:"id"`
	PONumber     string      `json:"poNumber"`
	SupplierID   string      `json:"supplierId"`
	SupplierName string      `json:"supplierName"`
	Items        []OrderLine `json:"items"`
	Status       OrderStatus `json:"status"`
	Total        float64     `json:"total"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// OrderLineInput identifies what to order.
type OrderLineInput struct {
	ProductID string
	Quantity  float64
	UnitPrice float64
}

// CreateOrderInput is the request to open a purchase order.
type CreateOrderInput struct {
	SupplierID string
	Items      []OrderLineInput
}
