package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("name already exists")
	ErrDuplicateCode = errors.New("share code already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidInput  = errors.New("invalid input")
	ErrShareExpired  = errors.New("share code expired or revoked")
)

// Session manager conditions. Callers classify these with errors.Is to
// decide whether a unit of work is worth retrying.
var (
	ErrPoolExhausted  = errors.New("connection pool exhausted")
	ErrTxConflict     = errors.New("transaction conflict")
	ErrConnectionLost = errors.New("connection lost")
)
