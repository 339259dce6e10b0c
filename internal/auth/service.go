package auth

import (
	"time"
)

// Service verifies the app password and issues tokens. Disabled auth means
// every request passes the middleware untouched.
type Service struct {
	tokens       *TokenManager
	passwordHash string
	enabled      bool
}

// NewService builds the auth service from config values.
func NewService(enabled bool, jwtSecret, passwordHash string, accessDuration time.Duration) *Service {
	return &Service{
		tokens:       NewTokenManager(jwtSecret, accessDuration),
		passwordHash: passwordHash,
		enabled:      enabled,
	}
}

// Enabled reports whether the API requires authentication.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Login checks the app password and returns a token pair.
func (s *Service) Login(password string) (*TokenPair, error) {
	if !VerifyPassword(password, s.passwordHash) {
		return nil, ErrInvalidPassword
	}
	return s.tokens.GenerateTokenPair()
}

// Validate checks an access token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	return s.tokens.ValidateAccessToken(tokenString)
}
