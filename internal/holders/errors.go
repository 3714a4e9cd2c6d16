package holders

import "errors"

var (
	ErrHolderNotFound      = errors.New("Holder not found")
	ErrInvalidName         = errors.New("Name may contain letters, spaces, dots, hyphens and apostrophes only")
	ErrInvalidEmail        = errors.New("Invalid email address")
	ErrInvalidPhone        = errors.New("Invalid phone number")
	ErrInvalidAccessCode   = errors.New("Invalid access code")
	ErrAccessCodeTaken     = errors.New("Access code already in use")
	ErrAccessCodeExhausted = errors.New("Could not generate a unique access code")
	ErrHolderHasBalances   = errors.New("Holder has outstanding balances or pending transactions")
)
