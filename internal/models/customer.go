package models

import "github.com/Renal37/wa-orderbot/internal/utils"

// Customer - профиль отправителя, ключ - wa_id.
type Customer struct {
	ID           int64             `json:"id"`
	WaID         string            `json:"wa_id"`
	Phone        string            `json:"phone"`
	Name         *string           `json:"name,omitempty"`
	FirstSeenAt  utils.RFC3339Date `json:"first_seen_at"`
	LastActiveAt utils.RFC3339Date `json:"last_active_at"`
	TotalOrders  int               `json:"total_orders"`
	IsBlocked    bool              `json:"is_blocked"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

type CustomerBlockUpdate struct {
	Blocked *bool `json:"blocked"`
}

// Stats - сводка для администратора.
type Stats struct {
	TotalCustomers int64             `json:"total_customers"`
	TotalOrders    int64             `json:"total_orders"`
	OrdersToday    int64             `json:"orders_today"`
	Timestamp      utils.RFC3339Date `json:"timestamp"`
}

// CacheClearResult - ответ на сброс кэша
type CacheClearResult struct {
	Status    string            `json:"status"`
	Timestamp utils.RFC3339Date `json:"timestamp"`
}
