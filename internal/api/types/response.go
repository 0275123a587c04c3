// internal/api/types/response.go
package types

import "petmarket/internal/domain"

// ErrorResponse is the body of every non-2xx response. Code is stable and
// meant for machines; Error is a human-readable message.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// BalanceResponse reports a user's currency balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// PurchaseResponse is returned by a successful purchase.
type PurchaseResponse struct {
	Message string          `json:"message"`
	Listing *domain.Listing `json:"listing"`
	Pet     *domain.Pet     `json:"pet"`
}
