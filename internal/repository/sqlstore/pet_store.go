// internal/repository/sqlstore/pet_store.go
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

const petColumns = `id, owner_id, name, attributes, created_at, updated_at`

// PetRepository implements repository.PetRepository on SQL.
type PetRepository struct{}

// NewPetRepository creates a new PetRepository.
func NewPetRepository() repository.PetRepository {
	return &PetRepository{}
}

// CreatePet inserts a new pet using the provided DBExecutor.
func (r *PetRepository) CreatePet(ctx context.Context, q repository.DBExecutor, pet *domain.Pet) error {
	query := q.Rebind(`INSERT INTO pets (` + petColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := q.ExecContext(ctx, query, pet.ID, pet.OwnerID, pet.Name, pet.Attributes, pet.CreatedAt, pet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pet: %w", err)
	}
	return nil
}

// GetPetByID retrieves a pet by its ID using the provided DBExecutor.
func (r *PetRepository) GetPetByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Pet, error) {
	return r.get(ctx, q, id, "")
}

// GetPetByIDForUpdate retrieves a pet and locks its row until the transaction ends.
func (r *PetRepository) GetPetByIDForUpdate(ctx context.Context, q repository.DBExecutor, id string) (*domain.Pet, error) {
	return r.get(ctx, q, id, forUpdate(q))
}

func (r *PetRepository) get(ctx context.Context, q repository.DBExecutor, id, lock string) (*domain.Pet, error) {
	var pet domain.Pet
	query := q.Rebind(`SELECT ` + petColumns + ` FROM pets WHERE id = ?` + lock)
	if err := q.GetContext(ctx, &pet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pet by ID %s: %w", id, err)
	}
	return &pet, nil
}

// TransferOwnership sets the owner of a pet.
func (r *PetRepository) TransferOwnership(ctx context.Context, q repository.DBExecutor, petID, newOwnerID string) error {
	query := q.Rebind(`UPDATE pets SET owner_id = ?, updated_at = ? WHERE id = ?`)
	result, err := q.ExecContext(ctx, query, newOwnerID, time.Now().UTC(), petID)
	if err != nil {
		return fmt.Errorf("failed to transfer pet %s: %w", petID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after transferring pet %s: %w", petID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}
