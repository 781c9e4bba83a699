package router

import (
	"net/http"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/middlewares"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/Renal37/wa-orderbot/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GetPaymentSummary принимает from и to в RFC3339. По умолчанию - текущие сутки UTC.
func GetPaymentSummary(w http.ResponseWriter, r *http.Request) {
	billingService := middlewares.GetServiceFromContext[models.BillingService](w, r, middlewares.BillingServiceKey)
	if billingService == nil {
		return
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	query := r.URL.Query()
	start, err := utils.ParseRFC3339(query.Get("from"), start)
	if err != nil {
		http.Error(w, "Parameter from is not RFC3339", http.StatusBadRequest)
		return
	}
	end, err = utils.ParseRFC3339(query.Get("to"), end)
	if err != nil {
		http.Error(w, "Parameter to is not RFC3339", http.StatusBadRequest)
		return
	}

	summary, err := (*billingService).PaymentSummary(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middlewares.EncodeJSONResponse(w, summary)
}

// GetStats отдаёт счётчики клиентов и заказов
func GetStats(w http.ResponseWriter, r *http.Request) {
	customerService := middlewares.GetServiceFromContext[models.CustomerService](w, r, middlewares.CustomerServiceKey)
	if customerService == nil {
		return
	}

	stats, err := (*customerService).Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middlewares.EncodeJSONResponse(w, stats)
}

// GetCustomerOrders отдаёт историю заказов клиента, 204 если заказов нет
func GetCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	limit, ok := limitFromQuery(w, r)
	if !ok {
		return
	}

	history, err := (*orderService).OrderHistory(r.Context(), chi.URLParam(r, "waID"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if len(history) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middlewares.EncodeJSONResponse(w, history)
}

// BlockCustomer блокирует или разблокирует клиента
func BlockCustomer(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[models.CustomerBlockUpdate](w, r)
	customerService := middlewares.GetServiceFromContext[models.CustomerService](w, r, middlewares.CustomerServiceKey)
	if customerService == nil {
		return
	}

	if data.Blocked == nil {
		http.Error(w, "Request doesn't contain blocked", http.StatusBadRequest)
		return
	}

	waID := chi.URLParam(r, "waID")
	if err := (*customerService).SetBlocked(r.Context(), waID, *data.Blocked); err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Log.Info("customer block changed",
		zap.String("admin", middlewares.GetAdminFromContext(r)),
		zap.String("waID", waID),
		zap.Bool("blocked", *data.Blocked),
	)

	w.WriteHeader(http.StatusNoContent)
}

// ClearCache сбрасывает кэш меню
func ClearCache(w http.ResponseWriter, r *http.Request) {
	menuService := middlewares.GetServiceFromContext[models.MenuService](w, r, middlewares.MenuServiceKey)
	if menuService == nil {
		return
	}

	(*menuService).InvalidateMenu()

	logger.Log.Info("cache cleared by admin", zap.String("admin", middlewares.GetAdminFromContext(r)))

	middlewares.EncodeJSONResponse(w, models.CacheClearResult{
		Status:    "cache_cleared",
		Timestamp: models.OrderTimestamp(time.Now()),
	})
}
