package ledger

import "errors"

var (
	// ErrInsufficientFunds is returned when a debit would drive the balance
	// negative. The account is left untouched.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrLedgerFrozen is returned for debits against an account whose ledger
	// failed reconciliation. Only an operator can clear the freeze.
	ErrLedgerFrozen = errors.New("ledger: account ledger frozen")

	// ErrIntegrityViolation is returned when the replayed transaction log
	// does not match the cached balance.
	ErrIntegrityViolation = errors.New("ledger: balance does not match transaction log")

	// ErrAccountNotFound is returned when no account exists for the given id.
	ErrAccountNotFound = errors.New("ledger: account not found")

	ErrInvalidAmount = errors.New("ledger: amount must be non-zero")
	ErrInvalidReason = errors.New("ledger: unknown transaction reason")
)
