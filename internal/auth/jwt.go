// Package auth protects the local API with a single app password and
// short-lived JWTs. The app is single-user: there are no accounts, only
// one bcrypt hash configured at install time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager signs and validates access tokens.
type TokenManager struct {
	secret              []byte
	accessTokenDuration time.Duration
}

// Claims is the JWT payload. The subject is always "local"; the claims
// exist to carry expiry, not identity.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenPair is the login response body.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewTokenManager creates a token manager.
func NewTokenManager(secret string, accessDuration time.Duration) *TokenManager {
	return &TokenManager{
		secret:              []byte(secret),
		accessTokenDuration: accessDuration,
	}
}

// GenerateAccessToken issues a new signed access token.
func (m *TokenManager) GenerateAccessToken() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "local",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "upbit-trading",
			Audience:  []string{"upbit-trading-api"},
		},
	})

	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateAccessToken validates a token and returns its claims.
func (m *TokenManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccessTokenDuration returns the access token lifetime in seconds.
func (m *TokenManager) AccessTokenDuration() int64 {
	return int64(m.accessTokenDuration.Seconds())
}

// GenerateTokenPair issues the login response.
func (m *TokenManager) GenerateTokenPair() (*TokenPair, error) {
	accessToken, err := m.GenerateAccessToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken: accessToken,
		ExpiresIn:   m.AccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}
