package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/celebmatch/internal/domain"
)

// DB interface for database operations
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// QuotaLimiter counts match requests per user in fixed windows stored in
// rate_limit_counters, so the quota holds across API replicas.
type QuotaLimiter struct {
	db     DB
	window time.Duration
	now    func() time.Time
}

// NewQuotaLimiter creates a limiter with the given window length
func NewQuotaLimiter(db DB, window time.Duration) *QuotaLimiter {
	return &QuotaLimiter{
		db:     db,
		window: window,
		now:    time.Now,
	}
}

func matchKey(userID uuid.UUID) string {
	return fmt.Sprintf("match_quota:%s", userID)
}

// CheckMatchQuota records one match attempt for userID and returns
// domain.ErrRateLimitExceeded once the window holds more than limit attempts.
func (r *QuotaLimiter) CheckMatchQuota(ctx context.Context, userID uuid.UUID, limit int) error {
	if limit <= 0 {
		return nil // No limit configured
	}

	now := r.now()
	expired := now.Add(-r.window)

	query := `
		INSERT INTO rate_limit_counters (key, count, window_start, user_id)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			count = CASE
				WHEN rate_limit_counters.window_start <= $4 THEN 1
				ELSE rate_limit_counters.count + 1
			END,
			window_start = CASE
				WHEN rate_limit_counters.window_start <= $4 THEN $2
				ELSE rate_limit_counters.window_start
			END
		RETURNING count
	`

	var count int
	err := r.db.QueryRow(ctx, query, matchKey(userID), now, userID, expired).Scan(&count)
	if err != nil {
		return fmt.Errorf("check match quota: %w", err)
	}

	if count > limit {
		return domain.ErrRateLimitExceeded.WithError(
			fmt.Errorf("%d/%d matches in %s", count, limit, r.window),
		)
	}

	return nil
}

// CleanupExpired removes counters whose window closed more than an hour ago
func (r *QuotaLimiter) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_counters WHERE window_start < $1`
	result, err := r.db.Exec(ctx, query, r.now().Add(-r.window-time.Hour))
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limit counters: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetCurrentCount returns the attempts recorded in the open window
func (r *QuotaLimiter) GetCurrentCount(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT count
		FROM rate_limit_counters
		WHERE key = $1 AND window_start > $2
	`

	var count int
	err := r.db.QueryRow(ctx, query, matchKey(userID), r.now().Add(-r.window)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get match quota: %w", err)
	}

	return count, nil
}

// ResetLimit clears the counter for userID (admin operation)
func (r *QuotaLimiter) ResetLimit(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM rate_limit_counters WHERE key = $1`
	if _, err := r.db.Exec(ctx, query, matchKey(userID)); err != nil {
		return fmt.Errorf("reset match quota: %w", err)
	}
	return nil
}
