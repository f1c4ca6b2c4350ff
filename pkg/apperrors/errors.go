package apperrors

import "errors"

// Sentinel errors separating caller mistakes from dependency failures.
// Handlers map these onto HTTP statuses; everything else is a 500.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)
