package customers

import "time"

// KeyCustomers is the storage key for the customer collection.
const KeyCustomers = "customers"

// Customer represents a buyer who can be attached to non-cash sales.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input carries the caller-supplied fields for create.
type Input struct {
	Name    string `validate:"required"`
	Email   string `validate:"omitempty,email"`
	Phone   string `validate:"required"`
	Address string
}

// Patch updates a subset of fields; nil means unchanged.
type Patch struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}
