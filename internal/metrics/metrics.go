package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbot_events_total",
			Help: "Inbound webhook events by kind and ingest outcome",
		},
		[]string{"kind", "status"},
	)

	EventProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderbot_event_processing_duration_seconds",
			Help:    "Duration of inbound event processing",
			Buckets: prometheus.DefBuckets,
		},
	)

	OrdersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbot_orders_created_total",
			Help: "Orders created by origin",
		},
		[]string{"origin"},
	)

	OrderNumberCollisionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbot_order_number_collisions_total",
			Help: "Order number candidates rejected by the unique constraint",
		},
	)

	OrderNumberExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbot_order_number_exhausted_total",
			Help: "Order creations that ran out of order number attempts",
		},
	)

	PaymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbot_payment_transitions_total",
			Help: "Applied payment status transitions by target status",
		},
		[]string{"status"},
	)

	SweptRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderbot_swept_rows_total",
			Help: "Rows removed or expired by the retention sweeper",
		},
		[]string{"target"},
	)

	SweepFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orderbot_sweep_failures_total",
			Help: "Failed retention sweep runs",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orderbot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

// Register регистрирует все метрики в реестре по умолчанию
func Register() {
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(EventProcessingDuration)
	prometheus.MustRegister(OrdersCreatedTotal)
	prometheus.MustRegister(OrderNumberCollisionsTotal)
	prometheus.MustRegister(OrderNumberExhaustedTotal)
	prometheus.MustRegister(PaymentTransitionsTotal)
	prometheus.MustRegister(SweptRowsTotal)
	prometheus.MustRegister(SweepFailuresTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Middleware измеряет длительность запросов. Маршрут берётся из шаблона chi,
// чтобы идентификаторы в пути не раздували число серий.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
