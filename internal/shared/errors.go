package shared

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyReceived occurs when a purchase order is received twice.
	ErrAlreadyReceived = errors.New("purchase order already received")
)
