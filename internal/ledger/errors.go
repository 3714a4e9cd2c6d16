package ledger

import "errors"

var (
	ErrNoBalance              = errors.New("Balance not found")
	ErrInsufficientBalance    = errors.New("Insufficient balance")
	ErrInvalidAmount          = errors.New("Amount must not be negative")
	ErrConcurrentModification = errors.New("Balance was modified concurrently")
)
