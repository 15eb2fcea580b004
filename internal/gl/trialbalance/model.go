package trialbalance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northbook/northbook/internal/gl/journal"
)

// Row is one cell of the materialized trial-balance view: the signed net
// daily delta for an (office, account) pair plus its running closing balance.
// ClosingBalance is nil until the carry-forward phase reaches the row.
type Row struct {
	ID              int64
	OfficeID        int64
	AccountID       int64
	TransactionDate time.Time
	EntryDate       time.Time
	Amount          decimal.Decimal
	ClosingBalance  *decimal.Decimal
}

// Pair identifies one independent carry-forward unit.
type Pair struct {
	OfficeID  int64
	AccountID int64
}

func (p Pair) String() string {
	return fmt.Sprintf("office=%d account=%d", p.OfficeID, p.AccountID)
}

// LedgerLine is the slice of a journal line the aggregation phase consumes.
type LedgerLine struct {
	OfficeID        int64
	AccountID       int64
	TransactionDate time.Time
	EntryDate       time.Time
	Type            journal.EntryType
	Amount          decimal.Decimal
}

// SignedAmount applies the credit-positive convention: debits reduce the
// daily delta, credits increase it.
func (l LedgerLine) SignedAmount() decimal.Decimal {
	if l.Type == journal.EntryTypeDebit {
		return l.Amount.Neg()
	}
	return l.Amount
}

// UnitError reports the failure of a single date or pair unit. The rest of
// the run proceeds; re-running resumes the failed unit.
type UnitError struct {
	Unit string
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Unit, e.Err)
}

func (e UnitError) Unwrap() error {
	return e.Err
}

// Report summarizes one reconciliation run.
type Report struct {
	RowsInserted int
	RowsUpdated  int
	Errors       []UnitError
}
