package ledger

import "errors"

// Sentinel error kinds. Callers should use errors.Is, never string matching.
var (
	ErrDuplicateName = errors.New("ledger: bot name already exists")
	ErrNotFound      = errors.New("ledger: record not found")
	ErrOrderNotOpen  = errors.New("ledger: order is not open")
	ErrInvalidBot    = errors.New("ledger: invalid bot configuration")
)
