package models

// PaymentSummary - сводка по оплатам за период.
type PaymentSummary struct {
	TotalOrders       int64            `json:"total_orders"`
	ConfirmedPayments int64            `json:"confirmed_payments"`
	PendingPayments   int64            `json:"pending_payments"`
	FailedPayments    int64            `json:"failed_payments"`
	TotalRevenue      int64            `json:"total_revenue"`
	PendingRevenue    int64            `json:"pending_revenue"`
	PerMethodCounts   map[string]int64 `json:"per_method_counts"`
}
