package router

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/middlewares"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/Renal37/wa-orderbot/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// writeServiceError переводит ошибки сервисов в коды HTTP
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCustomerNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrInvalidOrderTransition),
		errors.Is(err, services.ErrInvalidPaymentTransition),
		errors.Is(err, services.ErrPaymentAlreadyTerminal),
		errors.Is(err, services.ErrBillingNotApplied):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidOrder),
		errors.Is(err, services.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Log.Error("request failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func orderIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Order id is invalid", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func limitFromQuery(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		http.Error(w, "Limit is invalid", http.StatusBadRequest)
		return 0, false
	}
	return limit, true
}

// ListOrders отдаёт последние заказы, limit задаётся параметром запроса
func ListOrders(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	limit, ok := limitFromQuery(w, r)
	if !ok {
		return
	}

	orders, err := (*orderService).ListRecentOrders(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views := make([]models.OrderView, len(orders))
	for i, order := range orders {
		views[i] = models.NewOrderView(order)
	}

	middlewares.EncodeJSONResponse(w, views)
}

// GetOrder отдаёт заказ по id
func GetOrder(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	order, err := (*orderService).GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middlewares.EncodeJSONResponse(w, models.NewOrderView(*order))
}

// UpdateOrderStatus переводит заказ в новый статус
func UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[models.OrderStatusUpdate](w, r)
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	if data.Status == nil {
		http.Error(w, "Request doesn't contain status", http.StatusBadRequest)
		return
	}

	order, err := (*orderService).UpdateStatus(r.Context(), id, *data.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	logger.Log.Info("order status changed by admin",
		zap.String("admin", middlewares.GetAdminFromContext(r)),
		zap.String("orderNumber", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)

	middlewares.EncodeJSONResponse(w, models.NewOrderView(*order))
}

// ApplyBilling задаёт налог и способ оплаты заказа
func ApplyBilling(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[models.BillingRequest](w, r)
	billingService := middlewares.GetServiceFromContext[models.BillingService](w, r, middlewares.BillingServiceKey)
	if billingService == nil {
		return
	}

	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	if data.Tax == nil || data.PaymentMethod == nil {
		http.Error(w, "Request doesn't contain tax or payment_method", http.StatusBadRequest)
		return
	}

	order, err := (*billingService).ApplyBilling(r.Context(), id, *data.Tax, *data.PaymentMethod)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	middlewares.EncodeJSONResponse(w, models.NewOrderView(*order))
}

// UpdatePayment выполняет confirm, fail или refund
func UpdatePayment(w http.ResponseWriter, r *http.Request) {
	billingService := middlewares.GetServiceFromContext[models.BillingService](w, r, middlewares.BillingServiceKey)
	if billingService == nil {
		return
	}

	id, ok := orderIDFromPath(w, r)
	if !ok {
		return
	}

	var (
		order *models.Order
		err   error
	)

	switch action := chi.URLParam(r, "action"); action {
	case "confirm":
		order, err = (*billingService).ConfirmPayment(r.Context(), id, time.Now())
	case "fail":
		order, err = (*billingService).FailPayment(r.Context(), id)
	case "refund":
		order, err = (*billingService).RefundPayment(r.Context(), id)
	default:
		http.Error(w, fmt.Sprintf("Unknown payment action %q", action), http.StatusNotFound)
		return
	}

	if err != nil {
		writeServiceError(w, err)
		return
	}

	middlewares.EncodeJSONResponse(w, models.NewOrderView(*order))
}
