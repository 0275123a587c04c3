// internal/domain/pet.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Pet is the uniquely owned asset traded on the marketplace. Attributes is
// gameplay payload the marketplace never interprets.
type Pet struct {
	ID         string         `db:"id" json:"id"`
	OwnerID    string         `db:"owner_id" json:"owner_id"`
	Name       string         `db:"name" json:"name"`
	Attributes types.JSONText `db:"attributes" json:"attributes"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// NewPet creates a new Pet owned by ownerID.
func NewPet(ownerID, name string, attributes types.JSONText) *Pet {
	if len(attributes) == 0 {
		attributes = types.JSONText("{}")
	}
	now := time.Now().UTC()
	return &Pet{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		Attributes: attributes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
