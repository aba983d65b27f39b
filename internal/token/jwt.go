package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentorlab/mentor-server/internal/model"
)

// Claims represents JWT claims carrying the calling service name.
type Claims struct {
	jwt.RegisteredClaims
	Service   string `json:"service"`
	TokenType string `json:"typ"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
}

// NewJWT creates a new JWT token manager with the provided secret key.
func NewJWT(secretKey string) model.TokenManager {
	return &JWT{secretKey: secretKey}
}

const (
	serviceTTL  = 24 * time.Hour
	typeService = "service"
)

// GenerateServiceToken creates a token that identifies a trusted front-end
// service, such as the messaging gateway.
func (j *JWT) GenerateServiceToken(service string) (string, error) {
	if service == "" {
		return "", fmt.Errorf("service name is empty")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTTL)),
		},
		Service:   service,
		TokenType: typeService,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}

	return tokenString, nil
}

// ParseServiceToken validates the token and returns the service name.
func (j *JWT) ParseServiceToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse service token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("service token is invalid")
	}
	if claims.TokenType != typeService {
		return "", fmt.Errorf("token type mismatch: %s", claims.TokenType)
	}
	if claims.Service == "" {
		return "", fmt.Errorf("service token has empty service claim")
	}
	return claims.Service, nil
}
