package gov

import "errors"

// Error taxonomy shared by the store, ledger and voting layers. Callers wrap these
// with context and the HTTP edge maps them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrStorage           = errors.New("storage error")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrValidation        = errors.New("validation error")
	// ErrUpstream is a failure of an external service other than the ledger.
	ErrUpstream = errors.New("upstream error")
)
