package auth

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password against a stored bcrypt hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return &Error{Code: CodeInvalidCredential}
	}
	return fmt.Errorf("compare password: %w", err)
}

// ValidateEmail normalises email and rejects malformed addresses.
func ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &Error{Code: CodeInvalidEmail}
	}
	return email, nil
}

// ValidatePassword enforces the minimum password policy and, when confirm is non-nil,
// that both entries match.
func ValidatePassword(password string, confirm *string) error {
	if confirm != nil && password != *confirm {
		return &Error{Code: CodePasswordMismatch}
	}
	if len(password) < MinPasswordLength {
		return &Error{Code: CodeWeakPassword}
	}
	return nil
}
