package services

import (
	"context"
	"time"
)

const (
	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = time.Minute
)

// RateDecision - результат учёта запроса в окне
type RateDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RateLimiter считает запросы отправителя в фиксированных окнах.
// Всплеск на границе двух окон допускается.
type RateLimiter struct {
	storage   rateLimitStorage
	threshold int
	window    time.Duration
}

type rateLimitStorage interface {
	IncrementRateLimit(ctx context.Context, waID string, windowStart time.Time) (int, error)
}

// NewRateLimiter создаёт лимитер на threshold сообщений за окно window
func NewRateLimiter(storage rateLimitStorage, threshold int, window time.Duration) *RateLimiter {
	if threshold < 1 {
		threshold = DefaultRateLimitRequests
	}
	if window < time.Second {
		window = DefaultRateLimitWindow
	}
	return &RateLimiter{storage: storage, threshold: threshold, window: window}
}

// WindowStart возвращает floor(now / size) * size от начала эпохи Unix
func WindowStart(now time.Time, size time.Duration) time.Time {
	step := int64(size / time.Second)
	secs := now.Unix()
	start := secs - secs%step
	if secs < 0 && secs%step != 0 {
		start -= step
	}
	return time.Unix(start, 0).UTC()
}

// CheckAndIncrement учитывает запрос даже тогда, когда он отклонён
func (rl *RateLimiter) CheckAndIncrement(ctx context.Context, sender string, now time.Time) (RateDecision, error) {
	start := WindowStart(now, rl.window)

	count, err := rl.storage.IncrementRateLimit(ctx, sender, start)
	if err != nil {
		return RateDecision{}, err
	}

	if count > rl.threshold {
		return RateDecision{
			Allowed:    false,
			Count:      count,
			RetryAfter: start.Add(rl.window).Sub(now),
		}, nil
	}

	return RateDecision{Allowed: true, Count: count}, nil
}
