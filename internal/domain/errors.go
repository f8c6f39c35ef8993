package domain

import "errors"

// Tipos de error con nombre. Se comparan con errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountBanned      = errors.New("account banned")

	ErrTokenExpired      = errors.New("token expired")
	ErrTokenRevoked      = errors.New("token revoked")
	ErrTokenNotFound     = errors.New("token not found")
	ErrTokenAlreadyUsed  = errors.New("token already used")
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	ErrInvalidSignature = errors.New("invalid token signature")
	ErrMalformedToken   = errors.New("malformed token")
	ErrUnknownKeyID     = errors.New("unknown key id")
	ErrInvalidClaims    = errors.New("invalid token claims")

	ErrDuplicateProviderIdentity = errors.New("provider identity already linked")
	ErrProviderTokenInvalid      = errors.New("provider token invalid")

	ErrUserNotFound           = errors.New("user not found")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrEmailAlreadyVerified   = errors.New("email already verified")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrWeakPassword           = errors.New("password does not meet requirements")
	ErrRateLimited            = errors.New("rate limited")
	ErrInvalidInput           = errors.New("invalid input")
)
