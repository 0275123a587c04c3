// internal/service/marketplace_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"

	"petmarket/internal/domain"
	"petmarket/internal/repository"
	"petmarket/internal/util"
	"petmarket/pkg/db"
)

// MarketplaceService defines the marketplace operations. Every mutating call
// runs as one database transaction; on failure nothing it wrote is visible.
type MarketplaceService interface {
	CreateListing(ctx context.Context, petID, sellerID string, price int64) (*domain.Listing, error)
	PurchasePet(ctx context.Context, listingID, buyerID string) (*domain.Listing, *domain.Pet, error)
	CancelListing(ctx context.Context, listingID, userID string) (*domain.Listing, error)
	RegisterPet(ctx context.Context, ownerID, name string, attributes types.JSONText) (*domain.Pet, error)
	GrantCurrency(ctx context.Context, userID string, amount int64) (int64, error)
	GetPet(ctx context.Context, petID string) (*domain.Pet, error)
	GetListing(ctx context.Context, listingID string) (*domain.Listing, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// marketplaceService implements the MarketplaceService interface.
type marketplaceService struct {
	dbBeginner  db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor  repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	petRepo     repository.PetRepository
	accountRepo repository.AccountRepository
	listingRepo repository.ListingRepository
	beginTx     db.BeginTxFunc
	commitTx    db.CommitTxFunc
	rollbackTx  db.RollbackTxFunc
	logger      *slog.Logger
	now         func() time.Time
}

// NewMarketplaceService creates a new instance of MarketplaceService.
func NewMarketplaceService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	petRepo repository.PetRepository,
	accountRepo repository.AccountRepository,
	listingRepo repository.ListingRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) MarketplaceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &marketplaceService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		petRepo:     petRepo,
		accountRepo: accountRepo,
		listingRepo: listingRepo,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// withTx runs fn inside one transaction and commits only if fn succeeds.
// Errors returned by fn are passed through untouched.
func (s *marketplaceService) withTx(ctx context.Context, op string, fn func(q repository.DBExecutor) error) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return util.Internal(op+": failed to begin transaction", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return util.Internal(op, errors.New("transaction controller does not implement DBExecutor"))
	}

	if err := fn(txExecutor); err != nil {
		return err
	}

	if err := s.commitTx(txController); err != nil {
		return util.Internal(op+": failed to commit transaction", err)
	}
	return nil
}

// CreateListing puts a pet up for sale on behalf of its owner.
func (s *marketplaceService) CreateListing(ctx context.Context, petID, sellerID string, price int64) (*domain.Listing, error) {
	if blank(petID) || blank(sellerID) {
		return nil, util.ErrInvalidInput
	}
	if price < 0 {
		return nil, util.ErrInvalidInput
	}

	var listing *domain.Listing
	err := s.withTx(ctx, "create listing", func(q repository.DBExecutor) error {
		pet, err := s.petRepo.GetPetByIDForUpdate(ctx, q, petID)
		if err != nil {
			if util.IsError(err, util.ErrNotFound) {
				return util.ErrAssetNotFound
			}
			return util.Internal("create listing: failed to get pet", err)
		}
		if pet.OwnerID != sellerID {
			return util.ErrNotOwner
		}

		active, err := s.listingRepo.FindActiveListingByPet(ctx, q, petID)
		if err != nil {
			return util.Internal("create listing: failed to check active listing", err)
		}
		if active != nil {
			return util.ErrAlreadyListed
		}

		newListing := domain.NewListing(petID, sellerID, price)
		newListing.ListedAt = s.now()
		if err := s.listingRepo.CreateListing(ctx, q, newListing); err != nil {
			// Lost a race with a concurrent CreateListing for the same pet.
			if util.IsError(err, util.ErrUniqueViolation) {
				return util.ErrAlreadyListed
			}
			return util.Internal("create listing: failed to insert listing", err)
		}
		listing = newListing
		return nil
	})
	if err != nil {
		s.logFailure("create listing", err, "pet_id", petID, "seller_id", sellerID)
		return nil, err
	}

	s.logger.Info("Listing created",
		"listing_id", listing.ID, "pet_id", petID, "seller_id", sellerID, "price", price)
	return listing, nil
}

// PurchasePet sells the listed pet to buyerID. The listing update, both
// balance changes and the ownership transfer commit together or not at all.
func (s *marketplaceService) PurchasePet(ctx context.Context, listingID, buyerID string) (*domain.Listing, *domain.Pet, error) {
	if blank(listingID) || blank(buyerID) {
		return nil, nil, util.ErrInvalidInput
	}

	var (
		listing *domain.Listing
		pet     *domain.Pet
	)
	err := s.withTx(ctx, "purchase pet", func(q repository.DBExecutor) error {
		l, err := s.listingRepo.GetListingByIDForUpdate(ctx, q, listingID)
		if err != nil {
			if util.IsError(err, util.ErrNotFound) {
				return util.ErrListingNotFound
			}
			return util.Internal("purchase pet: failed to get listing", err)
		}
		if l.Status != domain.ListingStatusActive {
			return util.ErrListingNotAvailable
		}
		if buyerID == l.SellerID {
			return util.ErrCannotPurchaseOwnListing
		}

		balance, err := s.accountRepo.GetBalance(ctx, q, buyerID)
		if err != nil {
			if util.IsError(err, util.ErrAccountNotFound) {
				return util.ErrBuyerAccountNotFound
			}
			return util.Internal("purchase pet: failed to get buyer balance", err)
		}
		if balance < l.Price {
			return util.ErrInsufficientFunds
		}

		p, err := s.petRepo.GetPetByIDForUpdate(ctx, q, l.PetID)
		if err != nil {
			return util.Internal("purchase pet: failed to get listed pet", err)
		}
		if p.OwnerID != l.SellerID {
			return util.Internal("purchase pet",
				fmt.Errorf("pet %s is owned by %s, not by seller %s", p.ID, p.OwnerID, l.SellerID))
		}

		soldAt := s.now()
		if err := s.listingRepo.MarkListingSold(ctx, q, l.ID, buyerID, soldAt); err != nil {
			if util.IsError(err, util.ErrStatusConflict) {
				return util.ErrListingNotAvailable
			}
			return util.Internal("purchase pet: failed to mark listing sold", err)
		}
		if err := s.transferFunds(ctx, q, buyerID, l.SellerID, l.Price); err != nil {
			return err
		}
		if err := s.petRepo.TransferOwnership(ctx, q, p.ID, buyerID); err != nil {
			return util.Internal("purchase pet: failed to transfer ownership", err)
		}

		l.MarkSold(buyerID, soldAt)
		p.OwnerID = buyerID
		p.UpdatedAt = soldAt
		listing, pet = l, p
		return nil
	})
	if err != nil {
		s.logFailure("purchase pet", err, "listing_id", listingID, "buyer_id", buyerID)
		return nil, nil, err
	}

	s.logger.Info("Pet purchased",
		"listing_id", listing.ID,
		"pet_id", pet.ID,
		"seller_id", listing.SellerID,
		"buyer_id", buyerID,
		"price", listing.Price,
	)
	return listing, pet, nil
}

// transferFunds debits the buyer and credits the seller, touching the two
// accounts in user-id order so that opposite-direction purchases between the
// same users lock rows in the same order.
func (s *marketplaceService) transferFunds(ctx context.Context, q repository.DBExecutor, buyerID, sellerID string, amount int64) error {
	debit := func() error {
		err := s.accountRepo.Debit(ctx, q, buyerID, amount)
		switch {
		case err == nil:
			return nil
		case util.IsError(err, util.ErrInsufficientFunds):
			return util.ErrInsufficientFunds
		case util.IsError(err, util.ErrAccountNotFound):
			return util.ErrBuyerAccountNotFound
		default:
			return util.Internal("purchase pet: failed to debit buyer", err)
		}
	}
	credit := func() error {
		if err := s.accountRepo.Credit(ctx, q, sellerID, amount); err != nil {
			return util.Internal("purchase pet: failed to credit seller", err)
		}
		return nil
	}

	steps := []func() error{debit, credit}
	if sellerID < buyerID {
		steps = []func() error{credit, debit}
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// CancelListing withdraws an active listing on behalf of its seller.
func (s *marketplaceService) CancelListing(ctx context.Context, listingID, userID string) (*domain.Listing, error) {
	if blank(listingID) || blank(userID) {
		return nil, util.ErrInvalidInput
	}

	var listing *domain.Listing
	err := s.withTx(ctx, "cancel listing", func(q repository.DBExecutor) error {
		l, err := s.listingRepo.GetListingByIDForUpdate(ctx, q, listingID)
		if err != nil {
			if util.IsError(err, util.ErrNotFound) {
				return util.ErrListingNotFound
			}
			return util.Internal("cancel listing: failed to get listing", err)
		}
		if l.SellerID != userID {
			return util.ErrNotOwner
		}
		if l.Status.IsTerminal() {
			return util.ErrListingNotActive
		}

		cancelledAt := s.now()
		if err := s.listingRepo.MarkListingCancelled(ctx, q, l.ID, cancelledAt); err != nil {
			if util.IsError(err, util.ErrStatusConflict) {
				return util.ErrListingNotActive
			}
			return util.Internal("cancel listing: failed to mark listing cancelled", err)
		}
		l.MarkCancelled(cancelledAt)
		listing = l
		return nil
	})
	if err != nil {
		s.logFailure("cancel listing", err, "listing_id", listingID, "user_id", userID)
		return nil, err
	}

	s.logger.Info("Listing cancelled", "listing_id", listing.ID, "pet_id", listing.PetID, "seller_id", userID)
	return listing, nil
}

// RegisterPet records a newly created pet for ownerID.
func (s *marketplaceService) RegisterPet(ctx context.Context, ownerID, name string, attributes types.JSONText) (*domain.Pet, error) {
	if blank(ownerID) {
		return nil, util.ErrInvalidInput
	}
	if len(attributes) > 0 && !json.Valid(attributes) {
		return nil, util.ErrInvalidInput
	}

	pet := domain.NewPet(ownerID, strings.TrimSpace(name), attributes)
	err := s.withTx(ctx, "register pet", func(q repository.DBExecutor) error {
		if err := s.petRepo.CreatePet(ctx, q, pet); err != nil {
			return util.Internal("register pet: failed to create pet", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("register pet", err, "owner_id", ownerID)
		return nil, err
	}
	return pet, nil
}

// GrantCurrency credits userID, creating the account if needed, and returns
// the new balance. This is the entry point for top-ups settled elsewhere.
func (s *marketplaceService) GrantCurrency(ctx context.Context, userID string, amount int64) (int64, error) {
	if blank(userID) || amount <= 0 {
		return 0, util.ErrInvalidInput
	}

	var balance int64
	err := s.withTx(ctx, "grant currency", func(q repository.DBExecutor) error {
		if err := s.accountRepo.Credit(ctx, q, userID, amount); err != nil {
			return util.Internal("grant currency: failed to credit account", err)
		}
		b, err := s.accountRepo.GetBalance(ctx, q, userID)
		if err != nil {
			return util.Internal("grant currency: failed to re-fetch balance", err)
		}
		balance = b
		return nil
	})
	if err != nil {
		s.logFailure("grant currency", err, "user_id", userID)
		return 0, err
	}

	s.logger.Info("Currency granted", "user_id", userID, "amount", amount, "balance", balance)
	return balance, nil
}

func (s *marketplaceService) GetPet(ctx context.Context, petID string) (*domain.Pet, error) {
	if blank(petID) {
		return nil, util.ErrInvalidInput
	}
	pet, err := s.petRepo.GetPetByID(ctx, s.dbExecutor, petID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrAssetNotFound
		}
		return nil, util.Internal("get pet", err)
	}
	return pet, nil
}

func (s *marketplaceService) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	if blank(listingID) {
		return nil, util.ErrInvalidInput
	}
	listing, err := s.listingRepo.GetListingByID(ctx, s.dbExecutor, listingID)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrListingNotFound
		}
		return nil, util.Internal("get listing", err)
	}
	return listing, nil
}

func (s *marketplaceService) GetBalance(ctx context.Context, userID string) (int64, error) {
	if blank(userID) {
		return 0, util.ErrInvalidInput
	}
	balance, err := s.accountRepo.GetBalance(ctx, s.dbExecutor, userID)
	if err != nil {
		if util.IsError(err, util.ErrAccountNotFound) {
			return 0, util.ErrAccountNotFound
		}
		return 0, util.Internal("get balance", err)
	}
	return balance, nil
}

func (s *marketplaceService) logFailure(op string, err error, args ...any) {
	args = append(args, "operation", op, "error", err)
	if util.IsRetryable(err) {
		s.logger.Error("Marketplace operation failed", args...)
		return
	}
	s.logger.Info("Marketplace operation rejected", args...)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
