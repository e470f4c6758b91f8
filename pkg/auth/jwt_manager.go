package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Издатель токенов этого сервиса; чужие токены с тем же секретом не проходят
const tokenIssuer = "watchroom"

// Claims полезная нагрузка токена: subject — id пользователя, username
// дублируется, чтобы показывать владельца без похода в базу.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

func NewJWTManager(secret string, duration time.Duration) *JWTManager {
	return &JWTManager{secretKey: []byte(secret), tokenDuration: duration}
}

// Generate выпускает токен для пользователя
func (m *JWTManager) Generate(userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify проверяет подпись, издателя и срок токена
func (m *JWTManager) Verify(accessToken string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Issuer != tokenIssuer {
		return nil, errors.New("unknown token issuer")
	}
	return claims, nil
}

// Expiry когда токен истекает. Нужен logout'у: отозванный токен
// держится в черном списке ровно до конца своей жизни.
func (m *JWTManager) Expiry(accessToken string) (time.Time, error) {
	claims, err := m.Verify(accessToken)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

// ExtractTokenFromHeader достаёт bearer-токен из Authorization header
func ExtractTokenFromHeader(r *http.Request) (string, error) {
	const prefix = "bearer "

	hdr := r.Header.Get("Authorization")
	if len(hdr) > len(prefix) && strings.EqualFold(hdr[:len(prefix)], prefix) {
		return hdr[len(prefix):], nil
	}
	return "", errors.New("invalid Authorization header")
}
