package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrLockHeld       = errors.New("lock already held")
	ErrUnknownSortKey = errors.New("unknown sort key")
	ErrInvalidPrice   = errors.New("invalid encoded price")
	ErrDivisionByZero = errors.New("division by zero")
)
