// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Marketplace error kinds. Every kind except ErrInternalFailure is terminal
// for the call that produced it.
var (
	ErrInvalidInput             = errors.New("invalid input provided")
	ErrAssetNotFound            = errors.New("pet not found")
	ErrListingNotFound          = errors.New("listing not found")
	ErrNotOwner                 = errors.New("you do not own this pet or listing")
	ErrAlreadyListed            = errors.New("pet is already listed for sale")
	ErrListingNotAvailable      = errors.New("listing is no longer available")
	ErrListingNotActive         = errors.New("listing is not active")
	ErrCannotPurchaseOwnListing = errors.New("cannot purchase your own listing")
	ErrBuyerAccountNotFound     = errors.New("buyer has no currency account")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInternalFailure          = errors.New("internal failure")
)

// Store-level errors. The marketplace service translates these into the
// kinds above.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrAccountNotFound = errors.New("currency account not found")
	ErrStatusConflict  = errors.New("listing status changed concurrently")
	ErrUniqueViolation = errors.New("unique constraint violated")
)

// IsError reports whether any error in err's chain matches target.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}

// Internal tags a storage or transaction failure as ErrInternalFailure while
// keeping the cause in the chain.
func Internal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternalFailure, err)
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInternalFailure)
}
