// internal/service/marketplace_sqlite_test.go
package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petmarket/internal/domain"
	"petmarket/internal/repository"
	"petmarket/internal/repository/sqlstore"
	"petmarket/internal/service"
	"petmarket/internal/util"
	"petmarket/pkg/db"
)

// brokenTransferRepo fails the last write of a purchase so the earlier writes
// of the same transaction have to be undone.
type brokenTransferRepo struct {
	repository.PetRepository
}

func (r brokenTransferRepo) TransferOwnership(ctx context.Context, q repository.DBExecutor, petID, newOwnerID string) error {
	return errors.New("storage went away")
}

func openMarketplace(t *testing.T, petRepo repository.PetRepository) (service.MarketplaceService, *sqlx.DB) {
	t.Helper()

	conn, err := db.Open(db.Config{Driver: db.DriverSQLite, Path: db.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, sqlstore.Migrate(context.Background(), conn))

	if petRepo == nil {
		petRepo = sqlstore.NewPetRepository()
	}
	svc := service.NewMarketplaceService(
		conn,
		conn,
		petRepo,
		sqlstore.NewAccountRepository(),
		sqlstore.NewListingRepository(),
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return svc, conn
}

func grant(t *testing.T, svc service.MarketplaceService, userID string, amount int64) {
	t.Helper()
	_, err := svc.GrantCurrency(context.Background(), userID, amount)
	require.NoError(t, err)
}

func balanceOf(t *testing.T, svc service.MarketplaceService, userID string) int64 {
	t.Helper()
	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func TestPurchaseScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := openMarketplace(t, nil)

	grant(t, svc, "S", 500)
	grant(t, svc, "B", 1000)
	grant(t, svc, "B2", 50)
	pet, err := svc.RegisterPet(ctx, "S", "Pip", []byte(`{"species":"fox"}`))
	require.NoError(t, err)

	listing, err := svc.CreateListing(ctx, pet.ID, "S", 200)
	require.NoError(t, err)

	t.Run("SellerCannotBuyOwnListing", func(t *testing.T) {
		_, _, err := svc.PurchasePet(ctx, listing.ID, "S")
		assert.ErrorIs(t, err, util.ErrCannotPurchaseOwnListing)
	})

	t.Run("ShortBuyerChangesNothing", func(t *testing.T) {
		_, _, err := svc.PurchasePet(ctx, listing.ID, "B2")
		assert.ErrorIs(t, err, util.ErrInsufficientFunds)

		assert.Equal(t, int64(50), balanceOf(t, svc, "B2"))
		assert.Equal(t, int64(500), balanceOf(t, svc, "S"))
		stored, err := svc.GetListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ListingStatusActive, stored.Status)
	})

	t.Run("BuyerPurchases", func(t *testing.T) {
		sold, newPet, err := svc.PurchasePet(ctx, listing.ID, "B")
		require.NoError(t, err)
		assert.Equal(t, domain.ListingStatusSold, sold.Status)
		assert.Equal(t, "B", newPet.OwnerID)

		assert.Equal(t, int64(800), balanceOf(t, svc, "B"))
		assert.Equal(t, int64(700), balanceOf(t, svc, "S"))

		storedPet, err := svc.GetPet(ctx, pet.ID)
		require.NoError(t, err)
		assert.Equal(t, "B", storedPet.OwnerID)
		assert.JSONEq(t, `{"species":"fox"}`, string(storedPet.Attributes))

		stored, err := svc.GetListing(ctx, listing.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ListingStatusSold, stored.Status)
		require.NotNil(t, stored.BuyerID)
		assert.Equal(t, "B", *stored.BuyerID)
		assert.NotNil(t, stored.SoldAt)
		assert.Nil(t, stored.CancelledAt)
	})

	t.Run("SoldListingIsTerminal", func(t *testing.T) {
		_, _, err := svc.PurchasePet(ctx, listing.ID, "B2")
		assert.ErrorIs(t, err, util.ErrListingNotAvailable)

		_, err = svc.CancelListing(ctx, listing.ID, "S")
		assert.ErrorIs(t, err, util.ErrListingNotActive)
	})

	t.Run("OwnershipFollowsSale", func(t *testing.T) {
		_, err := svc.CreateListing(ctx, pet.ID, "S", 100)
		assert.ErrorIs(t, err, util.ErrNotOwner)

		relisted, err := svc.CreateListing(ctx, pet.ID, "B", 900)
		require.NoError(t, err)
		assert.Equal(t, "B", relisted.SellerID)
	})
}

func TestPurchaseErrorsWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	svc, _ := openMarketplace(t, nil)

	grant(t, svc, "seller", 10)
	pet, err := svc.RegisterPet(ctx, "seller", "Mo", nil)
	require.NoError(t, err)
	listing, err := svc.CreateListing(ctx, pet.ID, "seller", 40)
	require.NoError(t, err)

	_, _, err = svc.PurchasePet(ctx, listing.ID, "ghost")
	assert.ErrorIs(t, err, util.ErrBuyerAccountNotFound)

	_, _, err = svc.PurchasePet(ctx, "no-such-listing", "seller")
	assert.ErrorIs(t, err, util.ErrListingNotFound)

	_, err = svc.GetBalance(ctx, "ghost")
	assert.ErrorIs(t, err, util.ErrAccountNotFound)
	assert.Equal(t, int64(10), balanceOf(t, svc, "seller"))
}

func TestPurchaseCreatesSellerAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := openMarketplace(t, nil)

	grant(t, svc, "buyer", 75)
	pet, err := svc.RegisterPet(ctx, "seller", "Noodle", nil)
	require.NoError(t, err)
	listing, err := svc.CreateListing(ctx, pet.ID, "seller", 75)
	require.NoError(t, err)

	_, err = svc.GetBalance(ctx, "seller")
	require.ErrorIs(t, err, util.ErrAccountNotFound)

	_, _, err = svc.PurchasePet(ctx, listing.ID, "buyer")
	require.NoError(t, err)

	assert.Equal(t, int64(75), balanceOf(t, svc, "seller"))
	assert.Equal(t, int64(0), balanceOf(t, svc, "buyer"))
}

func TestFreeListingMovesNoFunds(t *testing.T) {
	ctx := context.Background()
	svc, _ := openMarketplace(t, nil)

	grant(t, svc, "buyer", 5)
	pet, err := svc.RegisterPet(ctx, "seller", "Gift", nil)
	require.NoError(t, err)
	listing, err := svc.CreateListing(ctx, pet.ID, "seller", 0)
	require.NoError(t, err)

	_, newPet, err := svc.PurchasePet(ctx, listing.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, "buyer", newPet.OwnerID)
	assert.Equal(t, int64(5), balanceOf(t, svc, "buyer"))
	assert.Equal(t, int64(0), balanceOf(t, svc, "seller"))
}

func TestPurchaseIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, _ := openMarketplace(t, brokenTransferRepo{sqlstore.NewPetRepository()})

	grant(t, svc, "seller", 100)
	grant(t, svc, "buyer", 300)
	pet, err := svc.RegisterPet(ctx, "seller", "Bolt", nil)
	require.NoError(t, err)
	listing, err := svc.CreateListing(ctx, pet.ID, "seller", 120)
	require.NoError(t, err)

	_, _, err = svc.PurchasePet(ctx, listing.ID, "buyer")
	require.Error(t, err)
	assert.True(t, util.IsRetryable(err))

	assert.Equal(t, int64(100), balanceOf(t, svc, "seller"))
	assert.Equal(t, int64(300), balanceOf(t, svc, "buyer"))

	stored, err := svc.GetListing(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusActive, stored.Status)
	assert.Nil(t, stored.BuyerID)
	assert.Nil(t, stored.SoldAt)

	storedPet, err := svc.GetPet(ctx, pet.ID)
	require.NoError(t, err)
	assert.Equal(t, "seller", storedPet.OwnerID)
}

func TestConcurrentPurchasesHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, conn := openMarketplace(t, nil)

	const buyers = 8
	const price = int64(250)

	grant(t, svc, "seller", 1)
	for i := 0; i < buyers; i++ {
		grant(t, svc, fmt.Sprintf("buyer-%d", i), 1000)
	}
	pet, err := svc.RegisterPet(ctx, "seller", "Star", nil)
	require.NoError(t, err)
	listing, err := svc.CreateListing(ctx, pet.ID, "seller", price)
	require.NoError(t, err)

	var totalBefore int64
	require.NoError(t, conn.GetContext(ctx, &totalBefore, `SELECT SUM(balance) FROM currency_accounts`))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  []error
	)
	for i := 0; i < buyers; i++ {
		buyerID := fmt.Sprintf("buyer-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.PurchasePet(ctx, listing.ID, buyerID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, buyerID)
				return
			}
			losers = append(losers, err)
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, losers, buyers-1)
	for _, err := range losers {
		assert.ErrorIs(t, err, util.ErrListingNotAvailable)
	}

	winner := winners[0]
	storedPet, err := svc.GetPet(ctx, pet.ID)
	require.NoError(t, err)
	assert.Equal(t, winner, storedPet.OwnerID)
	assert.Equal(t, int64(1000)-price, balanceOf(t, svc, winner))
	assert.Equal(t, 1+price, balanceOf(t, svc, "seller"))

	var totalAfter int64
	require.NoError(t, conn.GetContext(ctx, &totalAfter, `SELECT SUM(balance) FROM currency_accounts`))
	assert.Equal(t, totalBefore, totalAfter)
}

func TestListingLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, conn := openMarketplace(t, nil)

	pet, err := svc.RegisterPet(ctx, "owner", "Ash", nil)
	require.NoError(t, err)

	first, err := svc.CreateListing(ctx, pet.ID, "owner", 30)
	require.NoError(t, err)

	_, err = svc.CreateListing(ctx, pet.ID, "owner", 35)
	assert.ErrorIs(t, err, util.ErrAlreadyListed)

	_, err = svc.CancelListing(ctx, first.ID, "someone-else")
	assert.ErrorIs(t, err, util.ErrNotOwner)

	cancelled, err := svc.CancelListing(ctx, first.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.ListingStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = svc.CancelListing(ctx, first.ID, "owner")
	assert.ErrorIs(t, err, util.ErrListingNotActive)

	second, err := svc.CreateListing(ctx, pet.ID, "owner", 35)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	var active int
	require.NoError(t, conn.GetContext(ctx, &active,
		conn.Rebind(`SELECT COUNT(*) FROM listings WHERE pet_id = ? AND status = 'active'`), pet.ID))
	assert.Equal(t, 1, active)

	_, err = svc.CreateListing(ctx, "no-such-pet", "owner", 10)
	assert.ErrorIs(t, err, util.ErrAssetNotFound)
}
