package database

import (
	"context"
	"fmt"
	"time"
)

const (
	// InsertProcessedMessageQuery - условная вставка: при повторе ничего не меняет.
	// Ограничение уникальности message_id и есть синхронизация между обработчиками.
	InsertProcessedMessageQuery = `
		INSERT INTO
			processed_messages (message_id, wa_id, message_type, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id) DO NOTHING
	`
	DeleteProcessedMessageQuery = `
		DELETE FROM
			processed_messages
		WHERE
			message_id = $1
	`
	DeleteProcessedMessagesBeforeQuery = `
		DELETE FROM
			processed_messages
		WHERE
			processed_at < $1
	`
)

// InsertProcessedMessage возвращает true только для первого записавшего
func (d *Database) InsertProcessedMessage(ctx context.Context, messageID, waID, kind string, at time.Time) (bool, error) {
	tag, err := d.db.Exec(ctx, InsertProcessedMessageQuery, messageID, waID, kind, at)
	if err != nil {
		return false, fmt.Errorf("ошибка при отметке сообщения: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteProcessedMessage снимает отметку, чтобы повтор сообщения обработался заново
func (d *Database) DeleteProcessedMessage(ctx context.Context, messageID string) error {
	if _, err := d.db.Exec(ctx, DeleteProcessedMessageQuery, messageID); err != nil {
		return fmt.Errorf("ошибка при снятии отметки сообщения: %w", err)
	}
	return nil
}

// DeleteProcessedMessagesBefore удаляет отметки строго старше cutoff
func (d *Database) DeleteProcessedMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.db.Exec(ctx, DeleteProcessedMessagesBeforeQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка при очистке отметок сообщений: %w", err)
	}
	return tag.RowsAffected(), nil
}
