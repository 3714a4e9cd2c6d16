package approvals

import "errors"

var (
	ErrNotFound               = errors.New("Transaction not found")
	ErrAlreadyProcessed       = errors.New("Transaction already processed")
	ErrHolderNotFound         = errors.New("Holder not found")
	ErrActorNotFound          = errors.New("Approving administrator not found")
	ErrInvalidRequest         = errors.New("Invalid request")
	ErrInvalidExecutionPrice  = errors.New("Execution price must be greater than zero")
	ErrInsufficientBalance    = errors.New("Insufficient balance")
	ErrTokenNotWhitelisted    = errors.New("Token not whitelisted")
	ErrConcurrentModification = errors.New("Transaction was modified concurrently")
)
