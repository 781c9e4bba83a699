package router

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/Renal37/wa-orderbot/internal/middlewares"
	"github.com/Renal37/wa-orderbot/internal/models"
)

// HandleEvent принимает нормализованное событие вебхука. Повтор, блокировка
// и превышение лимита отвечают 200, чтобы провайдер не повторял доставку.
func HandleEvent(w http.ResponseWriter, r *http.Request) {
	event := middlewares.GetParsedJSONData[models.InboundEvent](w, r)
	ingestService := middlewares.GetServiceFromContext[models.IngestService](w, r, middlewares.IngestServiceKey)
	if ingestService == nil {
		return
	}

	result, err := (*ingestService).Handle(r.Context(), event)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		http.Error(w, "Event processing failed", http.StatusInternalServerError)
		return
	}

	if result.Status == models.IngestRateLimited && result.RetryAfter > 0 {
		seconds := int(math.Ceil(result.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	middlewares.EncodeJSONResponse(w, result)
}

// GetMenu отдаёт доступные позиции меню
func GetMenu(w http.ResponseWriter, r *http.Request) {
	menuService := middlewares.GetServiceFromContext[models.MenuService](w, r, middlewares.MenuServiceKey)
	if menuService == nil {
		return
	}

	items, err := (*menuService).ListMenu(r.Context())
	if err != nil {
		http.Error(w, "Menu is unavailable", http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponse(w, items)
}

// Health проверяет соединение с базой
func Health(w http.ResponseWriter, r *http.Request) {
	health := middlewares.GetServiceFromContext[models.HealthChecker](w, r, middlewares.HealthCheckerKey)
	if health == nil {
		return
	}

	if err := (*health).Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
		return
	}

	middlewares.EncodeJSONResponse(w, map[string]string{"status": "healthy"})
}
