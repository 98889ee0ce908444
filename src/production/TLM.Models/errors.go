package tlmmodels

import "errors"

// Sentinel errors shared across services, repositories and controllers.
// Repositories translate backend-specific failures into these so that
// controllers never leak storage internals to callers.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)
