package contracts

import "errors"

// Sentinel errors shared across packages (errors.Is로 판별)
var (
	ErrDuplicateDate     = errors.New("duplicate date in price series")
	ErrEmptySeries       = errors.New("price series is empty")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)
