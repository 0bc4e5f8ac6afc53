package sales

import (
	"time"
)

// Storage keys for the sale collection and the estimate counter.
const (
	KeySales           = "sales"
	KeyEstimateCounter = "estimateCounter"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentCredit PaymentMethod = "credit"
)

// Valid reports whether m is one of the accepted tender types.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentCredit:
		return true
	}
	return false
}

// LineItem is one sold line. Product and category names are snapshotted at
// sale time so the record stays meaningful after catalog edits or deletes.
type LineItem struct {
	ProductID         string  `json:"productId"`
	ProductName       string  `json:"productName"`
	Quantity          float64 `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	LineTotal         float64 `json:"lineTotal"`
	Unit              string  `json:"unit"`
	SubCategoryID     string  `json:"subCategoryId"`
	SubCategoryName   string  `json:"subCategoryName"`
	SuperCategoryID   string  `json:"superCategoryId"`
	SuperCategoryName string  `json:"superCategoryName"`
}

// Sale is a recorded estimate. Timestamp (epoch millis) is authoritative for
// ordering; Date is its calendar rendering.
type Sale struct {
	ID             string        `json:"id"`
	EstimateNumber string        `json:"estimateNumber"`
	Date           string        `json:"date"`
	Timestamp      int64         `json:"timestamp"`
	CustomerID     string        `json:"customerId,omitempty"`
	CustomerName   string        `json:"customerName,omitempty"`
	CustomerPhone  string        `json:"customerPhone,omitempty"`
	IsCashSale     bool          `json:"isCashSale"`
	Items          []LineItem    `json:"items"`
	Subtotal       float64       `json:"subtotal"`
	HamaliCharges  float64       `json:"hamaliCharges"`
	Total          float64       `json:"total"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	Reference      string        `json:"reference,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// LineInput identifies what was sold; snapshots are resolved at record time.
type LineInput struct {
	ProductID string
	Quantity  float64
	UnitPrice float64
}

// RecordSaleInput is the full request to record one sale.
type RecordSaleInput struct {
	EstimateNumber string
	CustomerID     string
	IsCashSale     bool
	Items          []LineInput
	PaymentMethod  PaymentMethod
	Subtotal       float64
	HamaliCharges  float64
	Total          float64
	Reference      string
	// Timestamp optionally overrides the record time (epoch millis).
	Timestamp int64
	// CustomerName/CustomerPhone override the values resolved from the
	// customer record when set.
	CustomerName  string
	CustomerPhone string
}

// EditSaleInput changes line quantities/prices and charges on a recorded
// sale. Lines must reference products already present on the sale; their
// snapshots are preserved.
type EditSaleInput struct {
	Items         []LineInput
	HamaliCharges *float64
	PaymentMethod *PaymentMethod
	Reference     *string
}
