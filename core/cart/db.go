package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Evan-Joseph/hospital-takeaway-sub001/core/promotion"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// SchemaVersion tags every persisted snapshot. Snapshots written under a
// different version are discarded on load instead of being migrated.
const SchemaVersion = 1

type row struct {
	OwnerID       string         `db:"owner_id"`
	SchemaVersion int            `db:"schema_version"`
	Payload       types.JSONText `db:"payload"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Fetch loads the owner's persisted cart. A missing, incompatible, or
// unreadable snapshot yields a fresh empty cart, never an error: the cart is
// a cache of customer intent, not a system of record.
func Fetch(ctx context.Context, db sqlx.ExtContext, ownerID string) (Cart, error) {
	const q = `SELECT * FROM carts WHERE owner_id = $1`

	var rw row
	if err := sqlx.GetContext(ctx, db, &rw, q, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return New(), nil
		}
		return Cart{}, fmt.Errorf("selecting cart[%s]: %w", ownerID, err)
	}

	if rw.SchemaVersion != SchemaVersion {
		return New(), nil
	}

	var c Cart
	if err := json.Unmarshal(rw.Payload, &c); err != nil {
		return New(), nil
	}

	if c.Lines == nil {
		c.Lines = []Line{}
	}
	if c.Labels == nil {
		c.Labels = map[string]string{}
	}
	if c.Promotions == nil {
		c.Promotions = map[string][]promotion.Rule{}
	}

	return c, nil
}

// Save upserts the owner's snapshot. Handlers call it after every mutation.
func Save(ctx context.Context, db sqlx.ExtContext, ownerID string, c Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling cart[%s]: %w", ownerID, err)
	}

	const q = `
	INSERT INTO carts
		(owner_id, schema_version, payload, updated_at)
	VALUES
		(:owner_id, :schema_version, :payload, :updated_at)
	ON CONFLICT (owner_id) DO UPDATE SET
		schema_version = EXCLUDED.schema_version,
		payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at`

	rw := row{
		OwnerID:       ownerID,
		SchemaVersion: SchemaVersion,
		Payload:       payload,
		UpdatedAt:     time.Now().UTC(),
	}

	if _, err := sqlx.NamedExecContext(ctx, db, q, rw); err != nil {
		return fmt.Errorf("upserting cart[%s]: %w", ownerID, err)
	}

	return nil
}
