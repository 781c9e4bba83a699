package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
)

// maxBodySize ограничивает размер тела JSON-запроса
const maxBodySize = 1 << 20

// parsedJSONDataFieldType является типом для хранения данных JSON в контексте запроса.
type parsedJSONDataFieldType string

// parsedJSONDataField - ключ для хранения данных JSON в контексте запроса.
const parsedJSONDataField parsedJSONDataFieldType = "parsedJSONDataField"

// ModelParameter определяет интерфейс, который могут реализовывать модели, поддерживающие как одиночные значения, так и срезы значений.
type ModelParameter interface {
	interface{} | []interface{}
}

// JSONMiddleware разбирает тело запроса в Model и кладёт результат в контекст.
// Тело больше maxBodySize отклоняется с кодом 413.
func JSONMiddleware[Model ModelParameter](next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			http.Error(w, "Тип контента не является application/json", http.StatusUnsupportedMediaType)
			return
		}

		var parsedData Model
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&parsedData); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, fmt.Sprintf("Тело запроса больше %d байт", tooLarge.Limit), http.StatusRequestEntityTooLarge)
				return
			}

			http.Error(w, fmt.Sprintf("Ошибка при разборе данных JSON: %s", err.Error()), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), parsedJSONDataField, parsedData)))
	})
}

// GetParsedJSONData извлекает данные JSON из контекста запроса.
func GetParsedJSONData[Model ModelParameter](w http.ResponseWriter, r *http.Request) Model {
	data, ok := r.Context().Value(parsedJSONDataField).(Model)

	if !ok {
		// Возврат ошибки, если данные не найдены в контексте.
		http.Error(w, "Не удалось извлечь данные из контекста", http.StatusInternalServerError)
		var empty Model
		return empty
	}

	return data
}

// EncodeJSONResponse кодирует данные в формат JSON и отправляет их в ответе с кодом 200.
func EncodeJSONResponse[Model any](w http.ResponseWriter, data Model) {
	resp, err := json.Marshal(data)
	if err != nil {
		http.Error(w, fmt.Sprintf("Ошибка при кодировании JSON-ответа: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}
