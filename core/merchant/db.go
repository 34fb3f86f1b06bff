package merchant

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, mch Merchant) error {
	const q = `
	INSERT INTO merchants
		(merchant_id, owner_id, name, description, image_url, created_at, updated_at)
	VALUES
		(:merchant_id, :owner_id, :name, :description, :image_url, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, mch); err != nil {
		return fmt.Errorf("inserting merchant: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, mch Merchant) error {
	const q = `
	UPDATE merchants SET
		name = :name,
		description = :description,
		image_url = :image_url,
		updated_at = :updated_at
	WHERE merchant_id = :merchant_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, mch); err != nil {
		return fmt.Errorf("updating merchant[%s]: %w", mch.ID, err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Merchant, error) {
	const q = `SELECT * FROM merchants WHERE merchant_id = $1`

	var mch Merchant
	if err := sqlx.GetContext(ctx, db, &mch, q, id); err != nil {
		return Merchant{}, fmt.Errorf("selecting merchant[%s]: %w", id, err)
	}

	return mch, nil
}

func FetchByOwner(ctx context.Context, db sqlx.ExtContext, ownerID string) (Merchant, error) {
	const q = `SELECT * FROM merchants WHERE owner_id = $1`

	var mch Merchant
	if err := sqlx.GetContext(ctx, db, &mch, q, ownerID); err != nil {
		return Merchant{}, fmt.Errorf("selecting merchant of owner[%s]: %w", ownerID, err)
	}

	return mch, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Merchant, error) {
	const q = `SELECT * FROM merchants ORDER BY created_at`

	mchs := []Merchant{}
	if err := sqlx.SelectContext(ctx, db, &mchs, q); err != nil {
		return nil, fmt.Errorf("selecting merchants: %w", err)
	}

	return mchs, nil
}
