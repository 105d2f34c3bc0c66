// Windowed admission-control counters.
// Backed by the shared store rather than an in-process map, so the count is
// correct across restarts and across horizontally-scaled instances sharing
// the database.
package sqlite

import (
	"context"
	"time"
)

// ─── Rate Limit Operations ──────────────────────────────────────────────────

// BumpRate increments the counter for bucket in the fixed window containing
// now and returns the new count. Expired windows are purged opportunistically.
func (db *DB) BumpRate(ctx context.Context, bucket string, window time.Duration, now time.Time) (int64, error) {
	windowStart := now.UTC().Truncate(window).Unix()

	_, err := db.db.ExecContext(ctx, `
		INSERT INTO rate_limits (bucket, window_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT(bucket, window_start) DO UPDATE SET count = count + 1
	`, bucket, windowStart)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.db.QueryRowContext(ctx, `
		SELECT count FROM rate_limits WHERE bucket = ? AND window_start = ?
	`, bucket, windowStart).Scan(&count)
	if err != nil {
		return 0, err
	}

	// TTL: drop windows older than the previous one. Best-effort.
	db.db.ExecContext(ctx, `
		DELETE FROM rate_limits WHERE window_start < ?
	`, windowStart-int64(window.Seconds()))

	return count, nil
}
