// internal/repository/sqlstore/schema.go
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"petmarket/internal/repository"
	"petmarket/pkg/db"
)

// schema is portable between PostgreSQL and SQLite. The constraints back the
// marketplace invariants at the storage level: one active listing per pet,
// buyer/sold_at set exactly when sold, and non-negative balances.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pets (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		attributes TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pets_owner_id ON pets (owner_id)`,
	`CREATE TABLE IF NOT EXISTS currency_accounts (
		user_id    TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id           TEXT PRIMARY KEY,
		pet_id       TEXT NOT NULL REFERENCES pets (id),
		seller_id    TEXT NOT NULL,
		price        BIGINT NOT NULL CHECK (price >= 0),
		status       TEXT NOT NULL CHECK (status IN ('active', 'sold', 'cancelled')),
		buyer_id     TEXT,
		listed_at    TIMESTAMP NOT NULL,
		sold_at      TIMESTAMP,
		cancelled_at TIMESTAMP,
		CHECK ((status = 'sold') = (buyer_id IS NOT NULL AND sold_at IS NOT NULL)),
		CHECK ((status = 'cancelled') = (cancelled_at IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS listings_one_active_per_pet ON listings (pet_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS listings_pet_id ON listings (pet_id)`,
}

// Migrate creates the marketplace tables and indexes if they do not exist.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}

// forUpdate returns the row-lock suffix for engines that support it. SQLite
// serializes writers at BEGIN IMMEDIATE instead.
func forUpdate(q repository.DBExecutor) string {
	if q.DriverName() == db.DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
