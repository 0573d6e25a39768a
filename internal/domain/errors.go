package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("invalid state")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrForbidden             = errors.New("forbidden")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrUnavailable           = errors.New("storage unavailable")
	ErrSerializationFailure  = errors.New("serialization failure")
	ErrConflict              = errors.New("conflict")
	ErrInvalidInput          = errors.New("invalid input")
)
