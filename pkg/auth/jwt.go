package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the bearer credential claims issued by the identity
// provider. UserID mirrors the subject; Nombre and FotoPerfil travel in the
// token so the relay can build call offers without an extra lookup when the
// store is unavailable.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"user_id"`
	Nombre     string `json:"nombre"`
	FotoPerfil string `json:"foto_perfil,omitempty"`
}

// Manager validates bearer credentials presented on connection attempts.
// Tokens are signed with a shared HMAC secret by the identity provider.
type Manager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewManager creates a new JWT manager.
func NewManager(secret, issuer string, lifetime time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: lifetime,
	}
}

// GenerateToken mints a token for the given user. The gateway itself never
// mints tokens in production; this exists for tooling and tests.
func (m *Manager) GenerateToken(userID, nombre, fotoPerfil string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
		UserID:     userID,
		Nombre:     nombre,
		FotoPerfil: fotoPerfil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
