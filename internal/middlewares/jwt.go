package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/Renal37/wa-orderbot/internal/services"
)

type adminFieldType string

// adminField - ключ, под которым в контексте хранится subject токена администратора
const adminField adminFieldType = "adminField"

// AuthMiddleware пропускает только запросы с действующим Bearer-токеном администратора.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtService := GetServiceFromContext[models.JWTService](w, r, JwtServiceKey)
		if jwtService == nil {
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Требуется заголовок Authorization", http.StatusUnauthorized)
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			http.Error(w, "Токен Bearer пуст", http.StatusUnauthorized)
			return
		}

		token, err := (*jwtService).ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, services.ErrTokenIsExpired) {
				http.Error(w, "Токен истёк", http.StatusUnauthorized)
				return
			}

			http.Error(w, "Неверный токен", http.StatusUnauthorized)
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			http.Error(w, "В токене нет поля sub", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminField, subject)))
	})
}

// GetAdminFromContext возвращает subject администратора или пустую строку
func GetAdminFromContext(r *http.Request) string {
	admin, _ := r.Context().Value(adminField).(string)
	return admin
}
