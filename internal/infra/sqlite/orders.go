// Order persistence. The UNIQUE constraint on payment_intent_id is the real
// idempotency guarantee; everything above it is advisory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

// ─── Order Operations ───────────────────────────────────────────────────────

// InsertOrder persists a new order and its initial status-history entry in
// one transaction. A uniqueness violation on payment_intent_id is reported as
// domain.ErrDuplicateIntent, never as a failure; any other constraint hit
// (an order_number collision) stays a storage error, since the writer's
// replay path would find nothing to replay under that intent.
func (db *DB) InsertOrder(ctx context.Context, o *domain.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	breakdownJSON, err := json.Marshal(o.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, payment_intent_id, user_id,
			customer_email, customer_name, order_type, status,
			items_json, breakdown_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.OrderNumber, o.PaymentIntentID, nullable(o.Customer.UserID),
		o.Customer.Email, o.Customer.Name, string(o.Type), string(o.Status),
		string(itemsJSON), string(breakdownJSON), o.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "orders.payment_intent_id") {
			return domain.ErrDuplicateIntent
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, description, created_at)
		VALUES (?, ?, ?, ?)
	`, o.ID, string(o.Status), "order created, payment verified",
		o.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	return tx.Commit()
}

// OrderByIntent fetches the order for a payment intent, or
// domain.ErrOrderNotFound.
func (db *DB) OrderByIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return db.fetchOrder(ctx, "payment_intent_id", paymentIntentID)
}

// OrderByNumber fetches the order by its human-readable number, or
// domain.ErrOrderNotFound.
func (db *DB) OrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return db.fetchOrder(ctx, "order_number", orderNumber)
}

func (db *DB) fetchOrder(ctx context.Context, column, key string) (*domain.Order, error) {
	var o domain.Order
	var userID sql.NullString
	var itemsJSON, breakdownJSON, orderType, status, createdStr string
	err := db.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, order_number, payment_intent_id, user_id,
			customer_email, customer_name, order_type, status,
			items_json, breakdown_json, created_at
		FROM orders WHERE %s = ?
	`, column), key).Scan(&o.ID, &o.OrderNumber, &o.PaymentIntentID, &userID,
		&o.Customer.Email, &o.Customer.Name, &orderType, &status,
		&itemsJSON, &breakdownJSON, &createdStr)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		o.Customer.UserID = userID.String
	}
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &o.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	return &o, nil
}

// SetOrderStatus applies a state-set status update and appends a history
// entry unless the latest entry already records the same status (webhook
// redelivery must not duplicate history).
func (db *DB) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, description string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ? WHERE id = ?
	`, string(status), orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound
	}

	var last sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM order_status_history
		WHERE order_id = ? ORDER BY id DESC LIMIT 1
	`, orderID).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	if !last.Valid || last.String != string(status) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_status_history (order_id, status, description)
			VALUES (?, ?, ?)
		`, orderID, string(status), description)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// StatusHistory returns the append-only status log for an order, oldest first.
func (db *DB) StatusHistory(ctx context.Context, orderID string) ([]domain.StatusChange, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT status, description, created_at
		FROM order_status_history WHERE order_id = ? ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.StatusChange
	for rows.Next() {
		var c domain.StatusChange
		var status, createdStr string
		if err := rows.Scan(&status, &c.Description, &createdStr); err != nil {
			return nil, err
		}
		c.Status = domain.OrderStatus(status)
		c.At, _ = time.Parse(time.RFC3339, createdStr)
		if c.At.IsZero() {
			c.At, _ = time.Parse("2006-01-02 15:04:05", createdStr)
		}
		history = append(history, c)
	}
	return history, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
