package auth

// AuthError is a stable error code plus a user-facing message.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized    = AuthError{Code: "UNAUTHORIZED", Message: "authentication required"}
	ErrInvalidToken    = AuthError{Code: "INVALID_TOKEN", Message: "invalid or malformed token"}
	ErrTokenExpired    = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrInvalidPassword = AuthError{Code: "INVALID_PASSWORD", Message: "invalid password"}
)
