// internal/repository/sqlstore/account_store.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"petmarket/internal/domain"
	"petmarket/internal/repository"
	"petmarket/internal/util"
)

// AccountRepository implements repository.AccountRepository on SQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// GetBalance returns the current balance of userID.
func (r *AccountRepository) GetBalance(ctx context.Context, q repository.DBExecutor, userID string) (int64, error) {
	var account domain.CurrencyAccount
	query := q.Rebind(`SELECT user_id, balance, created_at, updated_at FROM currency_accounts WHERE user_id = ?`)
	if err := q.GetContext(ctx, &account, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, util.ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	return account.Balance, nil
}

// Credit upserts the account: a missing account is created holding amount.
func (r *AccountRepository) Credit(ctx context.Context, q repository.DBExecutor, userID string, amount int64) error {
	if amount < 0 {
		return util.ErrInvalidInput
	}

	now := time.Now().UTC()
	query := q.Rebind(`INSERT INTO currency_accounts (user_id, balance, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = currency_accounts.balance + excluded.balance, updated_at = excluded.updated_at`)
	if _, err := q.ExecContext(ctx, query, userID, amount, now, now); err != nil {
		return fmt.Errorf("failed to credit user %s: %w", userID, err)
	}
	return nil
}

// Debit subtracts amount only if the balance covers it. When no row matches,
// a second read tells a missing account apart from a short balance.
func (r *AccountRepository) Debit(ctx context.Context, q repository.DBExecutor, userID string, amount int64) error {
	if amount < 0 {
		return util.ErrInvalidInput
	}

	query := q.Rebind(`UPDATE currency_accounts SET balance = balance - ?, updated_at = ?
		WHERE user_id = ? AND balance >= ?`)
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit user %s: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after debiting user %s: %w", userID, err)
	}
	if rowsAffected > 0 {
		return nil
	}

	if _, err := r.GetBalance(ctx, q, userID); err != nil {
		return err
	}
	return util.ErrInsufficientFunds
}
