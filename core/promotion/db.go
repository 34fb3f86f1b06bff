package promotion

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func Create(ctx context.Context, db sqlx.ExtContext, rule Rule) error {
	const q = `
	INSERT INTO promotions
		(promotion_id, merchant_id, title, discount_kind, discount_value, scope_kind, min_amount, usage_limit, usage_count, created_at, updated_at)
	VALUES
		(:promotion_id, :merchant_id, :title, :discount_kind, :discount_value, :scope_kind, :min_amount, :usage_limit, :usage_count, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, rule); err != nil {
		return fmt.Errorf("inserting promotion: %w", err)
	}

	return nil
}

// FetchSet returns the rules matching ids in the order the ids were given.
func FetchSet(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Rule, error) {
	const q = `SELECT * FROM promotions WHERE promotion_id = ANY($1)`

	rules := []Rule{}
	if err := sqlx.SelectContext(ctx, db, &rules, q, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("selecting promotions: %w", err)
	}

	byID := make(map[string]Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	ordered := make([]Rule, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}

	return ordered, nil
}

func FetchByMerchant(ctx context.Context, db sqlx.ExtContext, merchantID string) ([]Rule, error) {
	const q = `SELECT * FROM promotions WHERE merchant_id = $1 ORDER BY created_at`

	rules := []Rule{}
	if err := sqlx.SelectContext(ctx, db, &rules, q, merchantID); err != nil {
		return nil, fmt.Errorf("selecting promotions of merchant[%s]: %w", merchantID, err)
	}

	return rules, nil
}

// BumpUsage increments the usage counter of every given rule. Called when an
// order carrying those promotions is paid.
func BumpUsage(ctx context.Context, db sqlx.ExtContext, ids []string) error {
	const q = `UPDATE promotions SET usage_count = usage_count + 1 WHERE promotion_id = ANY($1)`

	if _, err := db.ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return fmt.Errorf("bumping promotion usage: %w", err)
	}

	return nil
}
