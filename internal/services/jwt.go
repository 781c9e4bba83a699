package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminTokenIssuer     = "wa-orderbot"
	DefaultAdminTokenTTL = 24 * time.Hour
)

var (
	ErrTokenIsInvalid = errors.New("токен недействителен")
	ErrTokenIsExpired = errors.New("токен истёк")
)

// JWTService выпускает и проверяет токены администраторов (HS256, общий секрет)
type JWTService struct {
	authSecretKey string
	ttl           time.Duration
	now           func() time.Time
}

// NewJWTService создаёт сервис токенов администратора с подписью HS256
func NewJWTService(authSecretKey string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultAdminTokenTTL
	}
	return &JWTService{authSecretKey: authSecretKey, ttl: ttl, now: time.Now}
}

// GenerateJWT выпускает токен для администратора subject
func (j *JWTService) GenerateJWT(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: пустой subject", ErrTokenIsInvalid)
	}

	now := j.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    adminTokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	})

	tokenString, err := token.SignedString([]byte(j.authSecretKey))
	if err != nil {
		return "", fmt.Errorf("error while generating token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken проверяет подпись, издателя и срок действия токена
func (j *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(j.authSecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(adminTokenIssuer),
		jwt.WithTimeFunc(j.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenIsExpired
		}

		return nil, fmt.Errorf("%w: %s", ErrTokenIsInvalid, err.Error())
	}

	if !parsedToken.Valid {
		return nil, ErrTokenIsInvalid
	}

	return parsedToken, nil
}
