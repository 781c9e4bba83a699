package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/jackc/pgx/v5"
)

const (
	menuColumns = `item_id, name, description, price, is_available, sort_order`

	SelectAvailableMenuItemsQuery = `
		SELECT ` + menuColumns + `
		FROM
			menu_items
		WHERE
			is_available
		ORDER BY
			sort_order, item_id
	`
	SelectMenuItemQuery = `
		SELECT ` + menuColumns + `
		FROM
			menu_items
		WHERE
			item_id = $1
	`
	UpsertMenuItemQuery = `
		INSERT INTO
			menu_items (item_id, name, description, price, is_available, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			is_available = EXCLUDED.is_available,
			sort_order = EXCLUDED.sort_order
	`
)

// FindAvailableMenuItems возвращает доступные позиции в порядке отображения
func (d *Database) FindAvailableMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := d.db.Query(ctx, SelectAvailableMenuItemsQuery)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении меню: %w", err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.MenuItem])
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении меню: %w", err)
	}
	return items, nil
}

// FindMenuItem находит позицию меню, в том числе недоступную
func (d *Database) FindMenuItem(ctx context.Context, itemID string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := d.db.QueryRow(ctx, SelectMenuItemQuery, itemID).
		Scan(&item.ItemID, &item.Name, &item.Description, &item.Price, &item.IsAvailable, &item.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении позиции меню: %w", err)
	}
	return &item, nil
}

// UpsertMenuItems загружает справочник меню одной транзакцией
func (d *Database) UpsertMenuItems(ctx context.Context, items []models.MenuItem) error {
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(UpsertMenuItemQuery, item.ItemID, item.Name, item.Description, item.Price, item.IsAvailable, item.SortOrder)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("ошибка при загрузке меню: %w", err)
	}
	return nil
}
