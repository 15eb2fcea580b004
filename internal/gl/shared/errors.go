package shared

import "errors"

var (
	// ErrDuplicateCode indicates the GL code is already taken.
	ErrDuplicateCode = errors.New("gl: account code already exists")
	// ErrInvalidParent indicates the parent is missing or a detail account.
	ErrInvalidParent = errors.New("gl: parent account invalid")
	// ErrCycle indicates a re-parent would make an account its own ancestor.
	ErrCycle = errors.New("gl: re-parent would create a cycle")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("gl: account not found")
	// ErrAccountNotPostable indicates the account cannot receive journal lines.
	ErrAccountNotPostable = errors.New("gl: account not postable")
	// ErrUnbalanced indicates debit total != credit total.
	ErrUnbalanced = errors.New("gl: journal batch must balance")
	// ErrEmptyLineSet indicates a batch side has no lines.
	ErrEmptyLineSet = errors.New("gl: debits and credits must each have at least one line")
	// ErrInvalidAmount indicates a missing or negative amount.
	ErrInvalidAmount = errors.New("gl: amount must be zero or positive")
	// ErrBatchNotFound indicates a missing journal batch.
	ErrBatchNotFound = errors.New("gl: journal batch not found")
	// ErrAlreadyReversed indicates the batch was reversed before.
	ErrAlreadyReversed = errors.New("gl: journal batch already reversed")
	// ErrConcurrentRun indicates another reconciliation run holds the lease.
	ErrConcurrentRun = errors.New("gl: reconciliation already running")
)
