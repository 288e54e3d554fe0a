package auth

import "errors"

// Token validation failures. The auth middleware maps each one to its own
// 401 message.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")

	// ErrRevokedToken is returned for a token whose jti was revoked at logout.
	ErrRevokedToken = errors.New("authentication token has been revoked")
)
