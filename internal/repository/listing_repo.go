// internal/repository/listing_repo.go
package repository

import (
	"context"
	"time"

	"petmarket/internal/domain"
)

// ListingRepository defines the interface for listing data operations.
type ListingRepository interface {
	// CreateListing inserts a new listing. A second active listing for the
	// same pet fails with util.ErrUniqueViolation.
	CreateListing(ctx context.Context, q DBExecutor, listing *domain.Listing) error
	// GetListingByID retrieves a listing by its ID, or util.ErrNotFound.
	GetListingByID(ctx context.Context, q DBExecutor, id string) (*domain.Listing, error)
	// GetListingByIDForUpdate is GetListingByID with a row lock where the engine supports one.
	GetListingByIDForUpdate(ctx context.Context, q DBExecutor, id string) (*domain.Listing, error)
	// FindActiveListingByPet returns the active listing for petID, or nil if there is none.
	FindActiveListingByPet(ctx context.Context, q DBExecutor, petID string) (*domain.Listing, error)
	// MarkListingSold moves an active listing to sold. If the stored status is
	// no longer active it fails with util.ErrStatusConflict and writes nothing.
	MarkListingSold(ctx context.Context, q DBExecutor, id, buyerID string, soldAt time.Time) error
	// MarkListingCancelled moves an active listing to cancelled, with the same
	// conflict semantics as MarkListingSold.
	MarkListingCancelled(ctx context.Context, q DBExecutor, id string, cancelledAt time.Time) error
}
