package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrDuplicate    = errors.New("already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrCustomerNotFound    = fmt.Errorf("customer %w", ErrNotFound)
	ErrProjectNotFound     = fmt.Errorf("project %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	// the project exists but is owned by another customer
	ErrProjectNotOwned = fmt.Errorf("project for this customer %w", ErrNotFound)

	ErrDuplicateNationalID = fmt.Errorf("customer with this national id %w", ErrDuplicate)
	ErrDuplicateUsername   = fmt.Errorf("username %w", ErrDuplicate)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrInactiveUser       = fmt.Errorf("%w: user is inactive", ErrUnauthorized)
	ErrInsufficientRole   = fmt.Errorf("%w: insufficient role", ErrForbidden)
)

// ValidationError builds an error matching ErrValidation with a readable message.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
