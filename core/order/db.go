package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, user_id, merchant_id, provider_id, status, total, promotion_ids, auto_close_at, created_at, updated_at)
	VALUES
		(:order_id, :user_id, :merchant_id, :provider_id, :status, :total, :promotion_ids, :auto_close_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items
		(order_id, product_id, name, unit_price, quantity, created_at)
	VALUES
		(:order_id, :product_id, :name, :unit_price, :quantity, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}

	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}

	return ord, nil
}

func FetchByProviderID(ctx context.Context, db sqlx.ExtContext, providerID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE provider_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, providerID); err != nil {
		return Order{}, fmt.Errorf("selecting order bound to payment[%s]: %w", providerID, err)
	}

	return ord, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	ords := []Order{}
	if err := sqlx.SelectContext(ctx, db, &ords, q, userID); err != nil {
		return nil, fmt.Errorf("selecting orders of user[%s]: %w", userID, err)
	}

	return ords, nil
}

func FetchItems(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Item, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1 ORDER BY created_at`

	items := []Item{}
	if err := sqlx.SelectContext(ctx, db, &items, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting items of order[%s]: %w", orderID, err)
	}

	return items, nil
}

// MarkPaid transitions an order from pending to customer_paid. The status
// guard in the filter makes the transition lose cleanly against a concurrent
// sweep: a timed-out order reports zero rows instead of being resurrected.
func MarkPaid(ctx context.Context, db sqlx.ExtContext, orderID string, now time.Time) (int64, error) {
	const q = `
	UPDATE orders SET
		status = $1,
		updated_at = $2
	WHERE order_id = $3 AND status = $4`

	res, err := db.ExecContext(ctx, q, CustomerPaid, now, orderID, Pending)
	if err != nil {
		return 0, fmt.Errorf("marking order[%s] paid: %w", orderID, err)
	}

	return res.RowsAffected()
}

// FetchExpired returns the ids of orders whose payment deadline elapsed
// before now and that are still pending.
func FetchExpired(ctx context.Context, db sqlx.ExtContext, now time.Time) ([]string, error) {
	const q = `
	SELECT order_id FROM orders
	WHERE status = $1 AND auto_close_at IS NOT NULL AND auto_close_at < $2`

	ids := []string{}
	if err := sqlx.SelectContext(ctx, db, &ids, q, Pending, now); err != nil {
		return nil, fmt.Errorf("selecting expired orders: %w", err)
	}

	return ids, nil
}

// CloseExpired force-closes the given orders in one batched update. The
// filter re-asserts the pending status so an order paid between the fetch and
// this update is never force-closed.
func CloseExpired(ctx context.Context, db sqlx.ExtContext, ids []string, now time.Time) (int64, error) {
	const q = `
	UPDATE orders SET
		status = $1,
		updated_at = $2
	WHERE order_id = ANY($3) AND status = $4`

	res, err := db.ExecContext(ctx, q, TimeoutClosed, now, pq.Array(ids), Pending)
	if err != nil {
		return 0, fmt.Errorf("closing expired orders: %w", err)
	}

	return res.RowsAffected()
}
