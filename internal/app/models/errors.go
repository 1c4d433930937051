package models

import "errors"

// Domain specific errors for authentication and authorization.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
)

// Token and session lifecycle errors. The middleware maps each of these to
// exactly one HTTP response; ErrSessionRevoked deliberately covers both
// unknown-user and revoked-session so callers cannot tell which check failed.
var (
	ErrMissingToken   = errors.New("missing credentials")
	ErrMalformedToken = errors.New("malformed or invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrSessionRevoked = errors.New("user not found or session revoked")
	ErrUnverified     = errors.New("account not verified")
)
