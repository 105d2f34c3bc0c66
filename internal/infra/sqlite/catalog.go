// Catalog and promotion lookups. Pure reads — the pricing path never writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

// ─── Catalog Operations ─────────────────────────────────────────────────────

// CatalogEntries resolves refs of one item type against the catalog.
// Missing refs are absent from the result map.
func (db *DB) CatalogEntries(ctx context.Context, kind domain.ItemType, refs []string) (map[string]domain.CatalogEntry, error) {
	if len(refs) == 0 {
		return map[string]domain.CatalogEntry{}, nil
	}

	var table string
	switch kind {
	case domain.ItemService:
		table = "services"
	case domain.ItemBundle:
		table = "bundles"
	default:
		return nil, fmt.Errorf("no catalog table for item type %q", kind)
	}

	placeholders := strings.Repeat("?,", len(refs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(refs))
	for i, r := range refs {
		args[i] = r
	}

	rows, err := db.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT ref, name, price_cents, active FROM %s WHERE ref IN (%s)
	`, table, placeholders), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.CatalogEntry, len(refs))
	for rows.Next() {
		var e domain.CatalogEntry
		var activeInt int
		if err := rows.Scan(&e.Ref, &e.Name, &e.UnitPrice, &activeInt); err != nil {
			return nil, err
		}
		e.Active = activeInt == 1
		result[e.Ref] = e
	}
	return result, rows.Err()
}

// UpsertService inserts or updates a service catalog row.
func (db *DB) UpsertService(ctx context.Context, ref, name string, priceCents int64, active bool) error {
	return db.upsertCatalogRow(ctx, "services", ref, name, priceCents, active)
}

// UpsertBundle inserts or updates a bundle catalog row.
func (db *DB) UpsertBundle(ctx context.Context, ref, name string, priceCents int64, active bool) error {
	return db.upsertCatalogRow(ctx, "bundles", ref, name, priceCents, active)
}

func (db *DB) upsertCatalogRow(ctx context.Context, table, ref, name string, priceCents int64, active bool) error {
	activeInt := 0
	if active {
		activeInt = 1
	}
	_, err := db.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (ref, name, price_cents, active, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(ref) DO UPDATE SET
			name        = excluded.name,
			price_cents = excluded.price_cents,
			active      = excluded.active,
			updated_at  = datetime('now')
	`, table), ref, name, priceCents, activeInt)
	return err
}

// ─── Promo Operations ───────────────────────────────────────────────────────

// PromoCode loads a promotion rule, or domain.ErrPromoNotFound.
func (db *DB) PromoCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	var p domain.PromoCode
	var activeInt int
	var expires sql.NullString
	err := db.db.QueryRowContext(ctx, `
		SELECT code, discount_type, value, active, expires_at, max_uses, used_count
		FROM promo_codes WHERE code = ?
	`, code).Scan(&p.Code, &p.DiscountType, &p.Value, &activeInt, &expires, &p.MaxUses, &p.UsedCount)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Active = activeInt == 1
	if expires.Valid {
		t, perr := time.Parse(time.RFC3339, expires.String)
		if perr == nil {
			p.ExpiresAt = &t
		}
	}
	return &p, nil
}

// ReferralCode loads a referral code, or domain.ErrPromoNotFound.
func (db *DB) ReferralCode(ctx context.Context, code string) (*domain.ReferralCode, error) {
	var r domain.ReferralCode
	var activeInt int
	err := db.db.QueryRowContext(ctx, `
		SELECT code, referrer_user_id, active FROM referral_codes WHERE code = ?
	`, code).Scan(&r.Code, &r.ReferrerUserID, &activeInt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Active = activeInt == 1
	return &r, nil
}

// ClaimPromoUse bumps a promo code's usage counter with the cap enforced in
// the UPDATE itself, the same conditional-write shape as the credit debit.
// ok=false means unknown code or usage exhausted; the counter never passes
// max_uses (0 = unlimited).
func (db *DB) ClaimPromoUse(ctx context.Context, code string) (bool, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE promo_codes SET used_count = used_count + 1
		WHERE code = ? AND (max_uses = 0 OR used_count < max_uses)
	`, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertPromoCode adds a promotion rule (admin/test seeding).
func (db *DB) InsertPromoCode(ctx context.Context, p domain.PromoCode) error {
	activeInt := 0
	if p.Active {
		activeInt = 1
	}
	var expires interface{}
	if p.ExpiresAt != nil {
		expires = p.ExpiresAt.Format(time.RFC3339)
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO promo_codes (code, discount_type, value, active, expires_at, max_uses, used_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Code, p.DiscountType, p.Value, activeInt, expires, p.MaxUses, p.UsedCount)
	return err
}

// InsertReferralCode adds a referral code (admin/test seeding).
func (db *DB) InsertReferralCode(ctx context.Context, r domain.ReferralCode) error {
	activeInt := 0
	if r.Active {
		activeInt = 1
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO referral_codes (code, referrer_user_id, active)
		VALUES (?, ?, ?)
	`, r.Code, r.ReferrerUserID, activeInt)
	return err
}
