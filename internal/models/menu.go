package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MenuItem - позиция меню бота
type MenuItem struct {
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	IsAvailable bool   `json:"is_available"`
	SortOrder   int    `json:"sort_order"`
}

// menuFileItem - позиция в YAML-файле. Без поля available позиция доступна.
type menuFileItem struct {
	ItemID      string `yaml:"item_id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int64  `yaml:"price"`
	Available   *bool  `yaml:"available"`
	SortOrder   int    `yaml:"sort_order"`
}

type menuFile struct {
	Items []menuFileItem `yaml:"items"`
}

// LoadMenu читает YAML-файл с позициями меню для начального заполнения.
func LoadMenu(path string) ([]MenuItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл меню: %w", err)
	}

	return ParseMenu(data)
}

// ParseMenu разбирает YAML-меню и проверяет позиции
func ParseMenu(data []byte) ([]MenuItem, error) {
	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("не удалось разобрать меню: %w", err)
	}

	items := make([]MenuItem, 0, len(file.Items))
	seen := make(map[string]bool, len(file.Items))
	for i, item := range file.Items {
		if item.ItemID == "" || item.Name == "" {
			return nil, fmt.Errorf("позиция %d: item_id и name обязательны", i+1)
		}
		if item.Price < 0 {
			return nil, fmt.Errorf("позиция %s: отрицательная цена", item.ItemID)
		}
		if seen[item.ItemID] {
			return nil, fmt.Errorf("позиция %s указана дважды", item.ItemID)
		}
		seen[item.ItemID] = true

		items = append(items, MenuItem{
			ItemID:      item.ItemID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			IsAvailable: item.Available == nil || *item.Available,
			SortOrder:   item.SortOrder,
		})
	}

	return items, nil
}
