package services

import (
	"context"
	"errors"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"github.com/Renal37/wa-orderbot/internal/models"
	"go.uber.org/zap"
)

// IngestService проводит входящее событие через отметку, проверку блокировки,
// ограничение частоты и профиль покупателя, затем создаёт заказ, если событие его содержит
type IngestService struct {
	guard      eventGuard
	customers  ingestCustomers
	limiter    eventRateLimiter
	orders     ingestOrders
	queue      jobEnqueuer
	messageLog MessageLogStorage
	now        func() time.Time
}

type eventGuard interface {
	MarkProcessed(ctx context.Context, eventID, sender string, kind models.EventKind) error

	Release(ctx context.Context, eventID string) error
}

type ingestCustomers interface {
	IsBlocked(ctx context.Context, sender string) (bool, error)

	Touch(ctx context.Context, sender string, displayName *string) (*models.Customer, error)
}

type eventRateLimiter interface {
	CheckAndIncrement(ctx context.Context, sender string, now time.Time) (RateDecision, error)
}

type ingestOrders interface {
	CreateOrder(ctx context.Context, sender string, origin models.OrderOrigin, items models.LineItems, notes *string) (*models.Order, error)

	CreateMenuOrder(ctx context.Context, sender, itemID string, quantity int, notes *string) (*models.Order, error)
}

type jobEnqueuer interface {
	Enqueue(job Job) error
}

// MessageLogStorage сохраняет входящие сообщения, если журнал включён
type MessageLogStorage interface {
	CreateMessageLog(ctx context.Context, entry database.MessageLogDB) error
}

// NewIngestService собирает конвейер. Если messageLog равен nil, журнал сообщений не ведётся.
func NewIngestService(
	guard eventGuard,
	customers ingestCustomers,
	limiter eventRateLimiter,
	orders ingestOrders,
	queue jobEnqueuer,
	messageLog MessageLogStorage,
) *IngestService {
	return &IngestService{
		guard:      guard,
		customers:  customers,
		limiter:    limiter,
		orders:     orders,
		queue:      queue,
		messageLog: messageLog,
		now:        time.Now,
	}
}

// Handle возвращает ошибку только для некорректного события или сбоя хранилища.
// Повтор, блокировка и превышение лимита - это исходы, а не ошибки.
func (s *IngestService) Handle(ctx context.Context, event models.InboundEvent) (models.IngestResult, error) {
	start := time.Now()

	if err := event.Validate(); err != nil {
		return models.IngestResult{}, err
	}

	result, err := s.handle(ctx, event)

	status := string(result.Status)
	if err != nil {
		status = "error"
	}
	metrics.EventsTotal.WithLabelValues(string(event.Kind), status).Inc()
	metrics.EventProcessingDuration.Observe(time.Since(start).Seconds())

	return result, err
}

func (s *IngestService) handle(ctx context.Context, event models.InboundEvent) (models.IngestResult, error) {
	if err := s.guard.MarkProcessed(ctx, event.EventID, event.Sender, event.Kind); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			logger.Log.Debug("duplicate event", zap.String("eventID", event.EventID))
			return models.IngestResult{Status: models.IngestDuplicate}, nil
		}
		return models.IngestResult{}, err
	}

	blocked, err := s.customers.IsBlocked(ctx, event.Sender)
	if err != nil {
		return models.IngestResult{}, s.release(ctx, event, err)
	}
	if blocked {
		logger.Log.Info("event from blocked sender dropped", zap.String("waID", event.Sender))
		return models.IngestResult{Status: models.IngestBlocked}, nil
	}

	now := s.now()
	decision, err := s.limiter.CheckAndIncrement(ctx, event.Sender, now)
	if err != nil {
		return models.IngestResult{}, s.release(ctx, event, err)
	}
	if !decision.Allowed {
		logger.Log.Warn("sender rate limited",
			zap.String("waID", event.Sender),
			zap.Int("count", decision.Count),
		)
		return models.IngestResult{Status: models.IngestRateLimited, RetryAfter: decision.RetryAfter}, nil
	}

	if _, err := s.customers.Touch(ctx, event.Sender, event.DisplayName); err != nil {
		return models.IngestResult{}, s.release(ctx, event, err)
	}

	s.logInbound(event, now)

	order, err := s.dispatch(ctx, event)
	if err != nil {
		if errors.Is(err, ErrInvalidOrder) ||
			errors.Is(err, models.ErrInvalidEvent) ||
			errors.Is(err, ErrMenuItemUnavailable) {
			logger.Log.Info("event ignored",
				zap.String("eventID", event.EventID),
				zap.String("reason", err.Error()),
			)
			return models.IngestResult{Status: models.IngestIgnored}, nil
		}
		return models.IngestResult{}, s.release(ctx, event, err)
	}

	result := models.IngestResult{Status: models.IngestAccepted}
	if order != nil {
		view := models.NewOrderView(*order)
		result.Order = &view
	}
	return result, nil
}

// dispatch возвращает nil без ошибки, если событие не содержит заказа
func (s *IngestService) dispatch(ctx context.Context, event models.InboundEvent) (*models.Order, error) {
	switch event.Kind {
	case models.KindButton, models.KindList:
		var reply models.ReplyPayload
		if err := event.DecodePayload(&reply); err != nil {
			return nil, err
		}
		if reply.ReplyID == "" {
			return nil, nil
		}

		quantity := reply.Quantity
		if quantity == 0 {
			quantity = 1
		}
		return s.orders.CreateMenuOrder(ctx, event.Sender, reply.ReplyID, quantity, nil)

	case models.KindInteractive:
		var checkout models.CatalogueOrderPayload
		if err := event.DecodePayload(&checkout); err != nil {
			return nil, err
		}
		if len(checkout.ProductItems) == 0 {
			return nil, nil
		}

		var notes *string
		if checkout.Text != "" {
			notes = &checkout.Text
		}
		return s.orders.CreateOrder(ctx, event.Sender, models.OriginCatalogue, checkout.Items(), notes)
	}

	return nil, nil
}

// release снимает отметку события после сбоя, чтобы повторная доставка была обработана
func (s *IngestService) release(ctx context.Context, event models.InboundEvent, cause error) error {
	if err := s.guard.Release(context.WithoutCancel(ctx), event.EventID); err != nil {
		logger.Log.Error("failed to release event marker",
			zap.String("eventID", event.EventID),
			zap.Error(err),
		)
	}

	logger.Log.Error("event processing failed",
		zap.String("eventID", event.EventID),
		zap.String("waID", event.Sender),
		zap.Error(cause),
	)
	return cause
}

func (s *IngestService) logInbound(event models.InboundEvent, at time.Time) {
	if s.messageLog == nil || s.queue == nil {
		return
	}

	entry := database.MessageLogDB{
		WaID:        event.Sender,
		Direction:   "inbound",
		MessageType: string(event.Kind),
		Content:     event.Payload,
		Status:      "success",
		CreatedAt:   at.UTC(),
	}

	err := s.queue.Enqueue(func(ctx context.Context) {
		if err := s.messageLog.CreateMessageLog(ctx, entry); err != nil {
			logger.Log.Warn("failed to write message log", zap.String("waID", entry.WaID), zap.Error(err))
		}
	})
	if err != nil {
		logger.Log.Warn("message log dropped", zap.String("waID", event.Sender), zap.Error(err))
	}
}
