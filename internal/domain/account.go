// internal/domain/account.go
package domain

import "time"

// CurrencyAccount holds a user's balance in the internal marketplace currency.
// Balance is never negative.
type CurrencyAccount struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
