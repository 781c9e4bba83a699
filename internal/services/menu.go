package services

import (
	"context"
	"sync"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/models"
	"go.uber.org/zap"
)

// DefaultMenuCacheTTL - сколько живёт закэшированное меню
const DefaultMenuCacheTTL = 5 * time.Minute

// MenuService отдаёт меню бота. Доступные позиции кэшируются на ttl,
// при ttl <= 0 каждое чтение идёт в хранилище.
type MenuService struct {
	storage menuStorage
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    []models.MenuItem
	expiresAt time.Time
}

type menuStorage interface {
	FindAvailableMenuItems(ctx context.Context) ([]models.MenuItem, error)

	UpsertMenuItems(ctx context.Context, items []models.MenuItem) error
}

// NewMenuService создаёт сервис меню с кэшем на ttl
func NewMenuService(storage menuStorage, ttl time.Duration) *MenuService {
	return &MenuService{storage: storage, ttl: ttl, now: time.Now}
}

// ListMenu возвращает доступные позиции в порядке отображения
func (m *MenuService) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	if items, ok := m.fromCache(); ok {
		return items, nil
	}

	items, err := m.storage.FindAvailableMenuItems(ctx)
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []models.MenuItem{}
	}

	if m.ttl > 0 {
		m.mu.Lock()
		m.cached = items
		m.expiresAt = m.now().Add(m.ttl)
		m.mu.Unlock()
	}

	return append([]models.MenuItem(nil), items...), nil
}

func (m *MenuService) fromCache() ([]models.MenuItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached == nil || !m.now().Before(m.expiresAt) {
		return nil, false
	}

	return append([]models.MenuItem{}, m.cached...), true
}

// InvalidateMenu сбрасывает кэш, следующее чтение пойдёт в хранилище
func (m *MenuService) InvalidateMenu() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()

	logger.Log.Info("menu cache cleared")
}

// SeedMenu загружает справочник меню, существующие позиции обновляются
func (m *MenuService) SeedMenu(ctx context.Context, items []models.MenuItem) error {
	if len(items) == 0 {
		return nil
	}

	if err := m.storage.UpsertMenuItems(ctx, items); err != nil {
		return err
	}

	m.InvalidateMenu()
	logger.Log.Info("menu seeded", zap.Int("items", len(items)))
	return nil
}
