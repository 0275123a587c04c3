// internal/repository/sqlstore/listing_store.go
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

const listingColumns = `id, pet_id, seller_id, price, status, buyer_id, listed_at, sold_at, cancelled_at`

// ListingRepository implements repository.ListingRepository on SQL.
type ListingRepository struct{}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository() repository.ListingRepository {
	return &ListingRepository{}
}

// CreateListing inserts a new listing record using the provided DBExecutor.
func (r *ListingRepository) CreateListing(ctx context.Context, q repository.DBExecutor, listing *domain.Listing) error {
	query := q.Rebind(`INSERT INTO listings (` + listingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, query,
		listing.ID,
		listing.PetID,
		listing.SellerID,
		listing.Price,
		listing.Status,
		listing.BuyerID,
		listing.ListedAt,
		listing.SoldAt,
		listing.CancelledAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create listing for pet %s: %w", listing.PetID, util.ErrUniqueViolation)
		}
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListingByID retrieves a listing by its ID.
func (r *ListingRepository) GetListingByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Listing, error) {
	return r.get(ctx, q, id, "")
}

// GetListingByIDForUpdate retrieves a listing and locks its row until the transaction ends.
func (r *ListingRepository) GetListingByIDForUpdate(ctx context.Context, q repository.DBExecutor, id string) (*domain.Listing, error) {
	return r.get(ctx, q, id, forUpdate(q))
}

func (r *ListingRepository) get(ctx context.Context, q repository.DBExecutor, id, lock string) (*domain.Listing, error) {
	var listing domain.Listing
	query := q.Rebind(`SELECT ` + listingColumns + ` FROM listings WHERE id = ?` + lock)
	if err := q.GetContext(ctx, &listing, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by ID %s: %w", id, err)
	}
	return &listing, nil
}

// FindActiveListingByPet returns the pet's active listing, or nil.
func (r *ListingRepository) FindActiveListingByPet(ctx context.Context, q repository.DBExecutor, petID string) (*domain.Listing, error) {
	var listing domain.Listing
	query := q.Rebind(`SELECT ` + listingColumns + ` FROM listings WHERE pet_id = ? AND status = ?`)
	if err := q.GetContext(ctx, &listing, query, petID, domain.ListingStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active listing for pet %s: %w", petID, err)
	}
	return &listing, nil
}

// MarkListingSold records the sale if the listing is still active.
func (r *ListingRepository) MarkListingSold(ctx context.Context, q repository.DBExecutor, id, buyerID string, soldAt time.Time) error {
	query := q.Rebind(`UPDATE listings SET status = ?, buyer_id = ?, sold_at = ? WHERE id = ? AND status = ?`)
	result, err := q.ExecContext(ctx, query, domain.ListingStatusSold, buyerID, soldAt, id, domain.ListingStatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark listing %s sold: %w", id, err)
	}
	return requireTransition(result, id)
}

// MarkListingCancelled cancels the listing if it is still active.
func (r *ListingRepository) MarkListingCancelled(ctx context.Context, q repository.DBExecutor, id string, cancelledAt time.Time) error {
	query := q.Rebind(`UPDATE listings SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`)
	result, err := q.ExecContext(ctx, query, domain.ListingStatusCancelled, cancelledAt, id, domain.ListingStatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark listing %s cancelled: %w", id, err)
	}
	return requireTransition(result, id)
}

func requireTransition(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating listing %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return util.ErrStatusConflict
	}
	return nil
}
