package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("Email and password are required")
	ErrInvalidEmail          = errors.New("Invalid Email")
	ErrIncorrectPassword     = errors.New("Incorrect Password")
	ErrAccessCodeRequired    = errors.New("Access code is required")
	ErrInvalidAccessCode     = errors.New("Invalid access code")
	ErrNotAuthenticated      = errors.New("Not authenticated")
	ErrAdminExists           = errors.New("Admin with this email already exists")
	ErrWeakPassword          = errors.New("Password must be at least 8 characters with a letter, a digit and a special character")
)
