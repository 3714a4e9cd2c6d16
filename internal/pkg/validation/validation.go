package validation

import (
	"regexp"
	"unicode"
)

// isValidEmail matches /^[^\s@]+@[^\s@]+\.[^\s@]+$/
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Holder names: letters (any script), spaces, dots, hyphens, apostrophes.
var nameRe = regexp.MustCompile(`^[\p{L}\s.\-']+$`)

var symbolRe = regexp.MustCompile(`^[A-Z0-9]{1,16}$`)

// Phone: optional leading +, then digits, spaces, dashes and parentheses.
var phoneRe = regexp.MustCompile(`^\+?[0-9\s\-()]{5,20}$`)

// AccessCodeAlphabet omits characters that are easy to misread (0/O, 1/I).
const AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// AccessCodeLength is the length of generated holder access codes.
const AccessCodeLength = 8

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func IsValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// IsValidPassword requires at least 8 characters with a letter, a digit and
// a special character.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidName(name string) bool {
	return name != "" && nameRe.MatchString(name)
}

// IsValidSymbol expects an already upper-cased token symbol.
func IsValidSymbol(symbol string) bool {
	return symbolRe.MatchString(symbol)
}

// IsValidAccessCode checks length and alphabet of a holder access code.
func IsValidAccessCode(code string) bool {
	if len(code) != AccessCodeLength {
		return false
	}
	for _, r := range code {
		if !containsRune(AccessCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
