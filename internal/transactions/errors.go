package transactions

import "errors"

var (
	ErrInvalidRequest      = errors.New("Invalid request")
	ErrTransactionNotFound = errors.New("Transaction not found")
)
