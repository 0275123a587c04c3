// internal/repository/account_repo.go
package repository

import (
	"context"
)

// AccountRepository is the currency ledger. Credit creates missing accounts,
// Debit never does.
type AccountRepository interface {
	// GetBalance returns the balance of userID or util.ErrAccountNotFound.
	GetBalance(ctx context.Context, q DBExecutor, userID string) (int64, error)
	// Credit adds amount to userID's balance, creating the account with
	// balance = amount if it does not exist. amount must be >= 0.
	Credit(ctx context.Context, q DBExecutor, userID string, amount int64) error
	// Debit subtracts amount from userID's balance. It fails with
	// util.ErrAccountNotFound or util.ErrInsufficientFunds and leaves the
	// balance untouched in both cases.
	Debit(ctx context.Context, q DBExecutor, userID string, amount int64) error
}
