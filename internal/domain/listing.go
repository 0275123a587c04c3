// internal/domain/listing.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the lifecycle state of a listing. Active is the only
// non-terminal state.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// IsTerminal reports whether no further transition may be applied.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusSold || s == ListingStatusCancelled
}

// Listing is an offer to sell one pet at a fixed price.
// BuyerID and SoldAt are set only when Status is sold.
type Listing struct {
	ID          string        `db:"id" json:"id"`
	PetID       string        `db:"pet_id" json:"pet_id"`
	SellerID    string        `db:"seller_id" json:"seller_id"`
	Price       int64         `db:"price" json:"price"`
	Status      ListingStatus `db:"status" json:"status"`
	BuyerID     *string       `db:"buyer_id" json:"buyer_id"`
	ListedAt    time.Time     `db:"listed_at" json:"listed_at"`
	SoldAt      *time.Time    `db:"sold_at" json:"sold_at"`
	CancelledAt *time.Time    `db:"cancelled_at" json:"cancelled_at"`
}

// NewListing creates a new active Listing.
func NewListing(petID, sellerID string, price int64) *Listing {
	return &Listing{
		ID:       uuid.NewString(),
		PetID:    petID,
		SellerID: sellerID,
		Price:    price,
		Status:   ListingStatusActive,
		ListedAt: time.Now().UTC(),
	}
}

// MarkSold applies the sold transition to the in-memory record.
func (l *Listing) MarkSold(buyerID string, at time.Time) {
	l.Status = ListingStatusSold
	l.BuyerID = &buyerID
	l.SoldAt = &at
}

// MarkCancelled applies the cancelled transition to the in-memory record.
func (l *Listing) MarkCancelled(at time.Time) {
	l.Status = ListingStatusCancelled
	l.CancelledAt = &at
}
