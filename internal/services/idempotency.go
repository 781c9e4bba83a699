package services

import (
	"context"
	"time"

	"github.com/Renal37/wa-orderbot/internal/models"
)

// IdempotencyGuard отмечает входящие события. Первый записавший побеждает,
// конкурентные вызовы с тем же идентификатором получают ErrDuplicateEvent.
type IdempotencyGuard struct {
	storage idempotencyStorage
	now     func() time.Time
}

type idempotencyStorage interface {
	InsertProcessedMessage(ctx context.Context, messageID, waID, kind string, at time.Time) (bool, error)

	DeleteProcessedMessage(ctx context.Context, messageID string) error
}

// NewIdempotencyGuard создаёт защиту от повторной обработки сообщений
func NewIdempotencyGuard(storage idempotencyStorage) *IdempotencyGuard {
	return &IdempotencyGuard{storage: storage, now: time.Now}
}

// MarkProcessed возвращает nil, если событие отмечено этим вызовом
func (g *IdempotencyGuard) MarkProcessed(ctx context.Context, eventID, sender string, kind models.EventKind) error {
	inserted, err := g.storage.InsertProcessedMessage(ctx, eventID, sender, string(kind), g.now().UTC())
	if err != nil {
		return err
	}

	if !inserted {
		return ErrDuplicateEvent
	}

	return nil
}

// Release снимает отметку, если обработка события не изменила данные,
// чтобы повторная доставка провайдером могла его обработать.
func (g *IdempotencyGuard) Release(ctx context.Context, eventID string) error {
	return g.storage.DeleteProcessedMessage(ctx, eventID)
}
