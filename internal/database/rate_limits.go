package database

import (
	"context"
	"fmt"
	"time"
)

const (
	// IncrementRateLimitQuery создаёт окно со счётчиком 1 или увеличивает существующий.
	IncrementRateLimitQuery = `
		INSERT INTO
			rate_limits (wa_id, window_start, request_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (wa_id, window_start) DO UPDATE SET
			request_count = rate_limits.request_count + 1
		RETURNING request_count
	`
	DeleteRateLimitsBeforeQuery = `
		DELETE FROM
			rate_limits
		WHERE
			window_start < $1
	`
)

// IncrementRateLimit атомарно увеличивает счётчик окна и возвращает новое значение
func (d *Database) IncrementRateLimit(ctx context.Context, waID string, windowStart time.Time) (int, error) {
	var count int
	if err := d.db.QueryRow(ctx, IncrementRateLimitQuery, waID, windowStart).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при учёте запроса: %w", err)
	}
	return count, nil
}

// DeleteRateLimitsBefore удаляет окна лимита старше cutoff и возвращает число удалённых строк
func (d *Database) DeleteRateLimitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.db.Exec(ctx, DeleteRateLimitsBeforeQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка при очистке окон ограничения: %w", err)
	}
	return tag.RowsAffected(), nil
}
