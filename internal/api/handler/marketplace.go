// internal/api/handler/marketplace.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx/types"

	apitypes "petmarket/internal/api/types"
	"petmarket/internal/service"
	"petmarket/internal/util" // For custom errors
)

// DefaultTimeout bounds the handling of a single request.
const DefaultTimeout = 30 * time.Second

// MarketplaceHandler handles HTTP requests for pets, accounts and listings.
type MarketplaceHandler struct {
	service service.MarketplaceService
	logger  *slog.Logger
}

// NewMarketplaceHandler creates a new MarketplaceHandler.
func NewMarketplaceHandler(svc service.MarketplaceService, logger *slog.Logger) *MarketplaceHandler {
	return &MarketplaceHandler{
		service: svc,
		logger:  logger,
	}
}

// errorMapping gives each error kind one HTTP status, message and code.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{util.ErrInvalidInput, http.StatusBadRequest, "invalid_input", util.ErrInvalidInput.Error()},
	{util.ErrAssetNotFound, http.StatusNotFound, "pet_not_found", util.ErrAssetNotFound.Error()},
	{util.ErrListingNotFound, http.StatusNotFound, "listing_not_found", util.ErrListingNotFound.Error()},
	{util.ErrAccountNotFound, http.StatusNotFound, "account_not_found", util.ErrAccountNotFound.Error()},
	{util.ErrBuyerAccountNotFound, http.StatusNotFound, "buyer_account_not_found", util.ErrBuyerAccountNotFound.Error()},
	{util.ErrNotOwner, http.StatusForbidden, "not_owner", util.ErrNotOwner.Error()},
	{util.ErrAlreadyListed, http.StatusConflict, "already_listed", util.ErrAlreadyListed.Error()},
	{util.ErrListingNotAvailable, http.StatusConflict, "listing_not_available", util.ErrListingNotAvailable.Error()},
	{util.ErrListingNotActive, http.StatusConflict, "listing_not_active", util.ErrListingNotActive.Error()},
	{util.ErrCannotPurchaseOwnListing, http.StatusUnprocessableEntity, "cannot_purchase_own_listing", util.ErrCannotPurchaseOwnListing.Error()},
	{util.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds", util.ErrInsufficientFunds.Error()},
}

// Helper function to send JSON responses.
func (h *MarketplaceHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *MarketplaceHandler) respondWithError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if util.IsError(err, m.err) {
			h.respondWithJSON(w, m.status, apitypes.ErrorResponse{Error: m.message, Code: m.code})
			return
		}
	}

	// Internal failures keep their cause out of the response body.
	if !util.IsRetryable(err) {
		h.logger.Error("Unhandled service error", "error", err)
	}
	h.respondWithJSON(w, http.StatusInternalServerError, apitypes.ErrorResponse{
		Error: "internal failure, please retry",
		Code:  "internal_failure",
	})
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return util.ErrInvalidInput
	}
	return nil
}

// RegisterPetRequest represents the request body for registering a pet.
type RegisterPetRequest struct {
	OwnerID    string         `json:"owner_id"`
	Name       string         `json:"name"`
	Attributes types.JSONText `json:"attributes"`
}

// RegisterPet handles the register pet request.
// POST /pets
func (h *MarketplaceHandler) RegisterPet(w http.ResponseWriter, r *http.Request) {
	var req RegisterPetRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	pet, err := h.service.RegisterPet(r.Context(), req.OwnerID, req.Name, req.Attributes)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, pet)
}

// GetPet handles the get pet request.
// GET /pets/{petID}
func (h *MarketplaceHandler) GetPet(w http.ResponseWriter, r *http.Request) {
	pet, err := h.service.GetPet(r.Context(), chi.URLParam(r, "petID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, pet)
}

// CreditRequest represents the request body for crediting an account.
type CreditRequest struct {
	Amount int64 `json:"amount"`
}

// Credit handles the grant currency request.
// POST /accounts/{userID}/credit
func (h *MarketplaceHandler) Credit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreditRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	balance, err := h.service.GrantCurrency(r.Context(), userID, req.Amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, apitypes.BalanceResponse{UserID: userID, Balance: balance})
}

// GetBalance handles the get balance request.
// GET /accounts/{userID}/balance
func (h *MarketplaceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, apitypes.BalanceResponse{UserID: userID, Balance: balance})
}

// CreateListingRequest represents the request body for listing a pet.
type CreateListingRequest struct {
	PetID    string `json:"pet_id"`
	SellerID string `json:"seller_id"`
	Price    int64  `json:"price"`
}

// CreateListing handles the create listing request.
// POST /listings
func (h *MarketplaceHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	listing, err := h.service.CreateListing(r.Context(), req.PetID, req.SellerID, req.Price)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, listing)
}

// GetListing handles the get listing request.
// GET /listings/{listingID}
func (h *MarketplaceHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listing, err := h.service.GetListing(r.Context(), chi.URLParam(r, "listingID"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, listing)
}

// PurchaseRequest represents the request body for buying a listed pet.
type PurchaseRequest struct {
	BuyerID string `json:"buyer_id"`
}

// Purchase handles the purchase pet request.
// POST /listings/{listingID}/purchase
func (h *MarketplaceHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")

	var req PurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	listing, pet, err := h.service.PurchasePet(r.Context(), listingID, req.BuyerID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, apitypes.PurchaseResponse{
		Message: "Purchase successful",
		Listing: listing,
		Pet:     pet,
	})
}

// CancelRequest represents the request body for cancelling a listing.
type CancelRequest struct {
	UserID string `json:"user_id"`
}

// Cancel handles the cancel listing request.
// POST /listings/{listingID}/cancel
func (h *MarketplaceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "listingID")

	var req CancelRequest
	if err := decodeBody(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	listing, err := h.service.CancelListing(r.Context(), listingID, req.UserID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, listing)
}
