package services

import (
	"context"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultProcessedRetentionDays  = 7
	DefaultRateLimitRetentionHours = 2
	DefaultSweepInterval           = time.Hour

	sweepRetryDelay = 30 * time.Second
)

// RetentionConfig - сроки хранения служебных данных и период очистки
type RetentionConfig struct {
	ProcessedRetentionDays  int
	RateLimitRetentionHours int
	PendingPaymentExpiry    time.Duration
	Interval                time.Duration
}

// SweepReport - сколько строк затронул один проход очистки
type SweepReport struct {
	ProcessedMarkers int64 `json:"processed_markers"`
	RateLimitWindows int64 `json:"rate_limit_windows"`
	ExpiredOrders    int   `json:"expired_orders"`
}

// RetentionService удаляет устаревшие отметки событий и окна ограничения запросов,
// а также отменяет просроченные неоплаченные заказы
type RetentionService struct {
	storage  retentionStorage
	expirer  pendingExpirer
	queue    jobScheduler
	config   RetentionConfig
	failures atomic.Int32
	now      func() time.Time
}

type retentionStorage interface {
	DeleteProcessedMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	DeleteRateLimitsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pendingExpirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type jobScheduler interface {
	ScheduleJob(job Job, delay time.Duration)
}

// NewRetentionService создаёт сервис очистки. queue нужна только для Start, для разового Sweep достаточно nil.
func NewRetentionService(storage retentionStorage, expirer pendingExpirer, queue jobScheduler, config RetentionConfig) *RetentionService {
	if config.ProcessedRetentionDays <= 0 {
		config.ProcessedRetentionDays = DefaultProcessedRetentionDays
	}
	if config.RateLimitRetentionHours <= 0 {
		config.RateLimitRetentionHours = DefaultRateLimitRetentionHours
	}
	if config.PendingPaymentExpiry <= 0 {
		config.PendingPaymentExpiry = DefaultPendingPaymentExpiry
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}

	return &RetentionService{
		storage: storage,
		expirer: expirer,
		queue:   queue,
		config:  config,
		now:     time.Now,
	}
}

// PurgeProcessedMarkers удаляет отметки старше retentionDays суток
func (rs *RetentionService) PurgeProcessedMarkers(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := rs.now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	return rs.storage.DeleteProcessedMessagesBefore(ctx, cutoff)
}

// PurgeRateLimitWindows удаляет окна, начавшиеся раньше чем retentionHours часов назад
func (rs *RetentionService) PurgeRateLimitWindows(ctx context.Context, retentionHours int) (int64, error) {
	cutoff := rs.now().UTC().Add(-time.Duration(retentionHours) * time.Hour)
	return rs.storage.DeleteRateLimitsBefore(ctx, cutoff)
}

// Sweep выполняет все шаги очистки. Ошибка одного шага не отменяет остальные.
func (rs *RetentionService) Sweep(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   error
		err    error
	)

	report.ProcessedMarkers, err = rs.PurgeProcessedMarkers(ctx, rs.config.ProcessedRetentionDays)
	errs = multierr.Append(errs, err)

	report.RateLimitWindows, err = rs.PurgeRateLimitWindows(ctx, rs.config.RateLimitRetentionHours)
	errs = multierr.Append(errs, err)

	if rs.expirer != nil {
		report.ExpiredOrders, err = rs.expirer.ExpireStalePending(ctx, rs.config.PendingPaymentExpiry)
		errs = multierr.Append(errs, err)
	}

	metrics.SweptRowsTotal.WithLabelValues("processed_messages").Add(float64(report.ProcessedMarkers))
	metrics.SweptRowsTotal.WithLabelValues("rate_limits").Add(float64(report.RateLimitWindows))

	return report, errs
}

// Start планирует периодическую очистку в очереди заданий.
// После неудачи следующий проход откладывается с экспоненциальной задержкой, но не дольше интервала.
func (rs *RetentionService) Start(ctx context.Context) {
	rs.queue.ScheduleJob(rs.job(ctx), 0)
}

func (rs *RetentionService) job(parent context.Context) Job {
	return func(ctx context.Context) {
		if parent.Err() != nil {
			return
		}

		report, err := rs.Sweep(ctx)
		if err != nil {
			metrics.SweepFailuresTotal.Inc()
			delay := rs.retryDelay(rs.failures.Inc())
			logger.Log.Error("retention sweep failed",
				zap.Errors("errors", multierr.Errors(err)),
				zap.Duration("retryIn", delay),
			)
			rs.queue.ScheduleJob(rs.job(parent), delay)
			return
		}

		rs.failures.Store(0)
		logger.Log.Info("retention sweep finished",
			zap.Int64("processedMarkers", report.ProcessedMarkers),
			zap.Int64("rateLimitWindows", report.RateLimitWindows),
			zap.Int("expiredOrders", report.ExpiredOrders),
		)
		rs.queue.ScheduleJob(rs.job(parent), rs.config.Interval)
	}
}

func (rs *RetentionService) retryDelay(failures int32) time.Duration {
	delay := sweepRetryDelay
	for i := int32(1); i < failures && delay < rs.config.Interval; i++ {
		delay *= 2
	}
	if delay > rs.config.Interval {
		delay = rs.config.Interval
	}
	return delay
}
