package tokens

import "errors"

var (
	ErrTokenNotFound = errors.New("Token not found")
	ErrTokenExists   = errors.New("Token already exists")
	ErrInvalidSymbol = errors.New("Symbol must be 1-16 letters or digits")
	ErrNameRequired  = errors.New("Name and price_feed_id are required")
	ErrTokenInUse    = errors.New("Token has outstanding balances or pending transactions")
)
