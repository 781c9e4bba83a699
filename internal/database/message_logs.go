package database

import (
	"context"
	"fmt"
	"time"
)

const (
	InsertMessageLogQuery = `
		INSERT INTO
			message_logs (wa_id, direction, message_type, content, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
)

// MessageLogDB - запись журнала сообщений
type MessageLogDB struct {
	WaID         string
	Direction    string
	MessageType  string
	Content      []byte // JSON
	Status       string
	ErrorMessage *string
	CreatedAt    time.Time
}

// CreateMessageLog добавляет запись в журнал сообщений
func (d *Database) CreateMessageLog(ctx context.Context, entry MessageLogDB) error {
	content := "{}"
	if len(entry.Content) > 0 {
		content = string(entry.Content)
	}

	_, err := d.db.Exec(ctx, InsertMessageLogQuery,
		entry.WaID, entry.Direction, entry.MessageType, content, entry.Status, entry.ErrorMessage, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("не удалось записать журнал сообщения: %w", err)
	}
	return nil
}
