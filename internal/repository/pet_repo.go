// internal/repository/pet_repo.go
package repository

import (
	"context"

	"petmarket/internal/domain"
)

// PetRepository defines the interface for pet data operations.
type PetRepository interface {
	// CreatePet adds a new pet using the provided DBExecutor.
	CreatePet(ctx context.Context, q DBExecutor, pet *domain.Pet) error
	// GetPetByID retrieves a pet by its ID, or util.ErrNotFound.
	GetPetByID(ctx context.Context, q DBExecutor, id string) (*domain.Pet, error)
	// GetPetByIDForUpdate is GetPetByID with a row lock where the engine supports one.
	GetPetByIDForUpdate(ctx context.Context, q DBExecutor, id string) (*domain.Pet, error)
	// TransferOwnership unconditionally sets the pet's owner. Only the
	// marketplace service calls it, inside a purchase transaction.
	TransferOwnership(ctx context.Context, q DBExecutor, petID, newOwnerID string) error
}
